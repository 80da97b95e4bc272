package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoVideoPaths is returned when no video paths are provided for joining.
	ErrNoVideoPaths = errors.New("no video paths provided")
	// ErrNoFrames is returned when a slideshow has no frames.
	ErrNoFrames = errors.New("no frames provided")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when an input has no video stream to operate on.
	ErrNoVideoStream = errors.New("no video stream")
	// ErrUnknownTransition is returned for a transition name xfade does not know.
	ErrUnknownTransition = errors.New("unknown transition")
)

// Output encoding shared by every re-encoding operation.
const (
	audioSampleRate = 44100
	audioBitrate    = "128k"
	videoCRF        = "23"
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Verify interface implementation at compile time.
var _ Processor = (*FFmpegProcessor)(nil)

// JoinVideos concatenates multiple video files into a single output file.
// Compatible inputs are joined with a stream copy; if that fails, or the
// inputs differ in codec, size or audio layout, every clip is normalized to
// the first clip's display size and re-encoded.
func (p *FFmpegProcessor) JoinVideos(ctx context.Context, videoPaths []string, output string, progress ProgressFunc) error {
	if len(videoPaths) == 0 {
		return ErrNoVideoPaths
	}

	if len(videoPaths) == 1 {
		// Single video: just copy the file
		return p.copyFile(videoPaths[0], output)
	}

	infos, err := p.probeAll(ctx, videoPaths)
	if err != nil {
		return err
	}

	if compatible(infos) {
		// Create a temporary file list for the concat demuxer
		listFile, err := p.createConcatList(videoPaths)
		if err != nil {
			return fmt.Errorf("create concat list: %w", err)
		}
		defer func() { _ = os.Remove(listFile) }()

		// Try fast copy first (no re-encoding)
		if err := p.joinWithCopy(ctx, listFile, output); err == nil {
			if progress != nil {
				progress(1)
			}
			return nil
		} else if ctx.Err() != nil {
			return err
		}
	}

	// Fast copy unavailable or failed, fall back to re-encoding
	return p.joinWithReencode(ctx, videoPaths, infos, output, progress)
}

// joinWithCopy attempts to concatenate videos using stream copy (no re-encoding).
func (p *FFmpegProcessor) joinWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		"-movflags", "+faststart",
		output, // Output file
	}
	return p.runFFmpeg(ctx, args, 0, nil)
}

// joinWithReencode concatenates normalized clips with the concat filter.
func (p *FFmpegProcessor) joinWithReencode(ctx context.Context, videoPaths []string, infos []*Info, output string, progress ProgressFunc) error {
	g, err := newClipGraph(videoPaths, infos, defaultFrameRate)
	if err != nil {
		return err
	}

	var concatIn strings.Builder
	for i := range videoPaths {
		fmt.Fprintf(&concatIn, "[v%d][a%d]", i, i)
	}
	g.filters = append(g.filters,
		fmt.Sprintf("%sconcat=n=%d:v=1:a=1[v][a]", concatIn.String(), len(videoPaths)))

	args := g.args(output)
	return p.runFFmpeg(ctx, args, sumDurations(infos), progress)
}

// JoinWithTransition concatenates videos with an xfade transition between
// adjacent clips and a matching audio crossfade. The transition is shortened
// to half the shortest clip when needed, so the output lasts
// sum(durations) - (n-1)*duration.
func (p *FFmpegProcessor) JoinWithTransition(ctx context.Context, videoPaths []string, output string, opts TransitionOpts, progress ProgressFunc) error {
	if len(videoPaths) == 0 {
		return ErrNoVideoPaths
	}
	if !IsTransition(opts.Name) {
		return fmt.Errorf("%w: %q", ErrUnknownTransition, opts.Name)
	}
	if opts.Duration <= 0 {
		return fmt.Errorf("%w: transition %.2f", ErrInvalidDuration, opts.Duration)
	}
	if len(videoPaths) == 1 {
		return p.copyFile(videoPaths[0], output)
	}

	infos, err := p.probeAll(ctx, videoPaths)
	if err != nil {
		return err
	}

	fps := opts.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}
	g, err := newClipGraph(videoPaths, infos, fps)
	if err != nil {
		return err
	}

	durations := make([]float64, len(infos))
	for i, info := range infos {
		durations[i] = info.Duration
	}
	td := ClampTransition(opts.Duration, durations)
	if td <= 0 {
		return fmt.Errorf("%w: clips too short for a transition", ErrInvalidDuration)
	}

	prevV, prevA := "v0", "a0"
	for i, off := range TransitionOffsets(durations, td) {
		n := i + 1
		outV, outA := fmt.Sprintf("vx%d", n), fmt.Sprintf("ax%d", n)
		if n == len(videoPaths)-1 {
			outV, outA = "v", "a"
		}
		g.filters = append(g.filters,
			fmt.Sprintf("[%s][v%d]xfade=transition=%s:duration=%.3f:offset=%.3f[%s]", prevV, n, opts.Name, td, off, outV),
			fmt.Sprintf("[%s][a%d]acrossfade=d=%.3f[%s]", prevA, n, td, outA),
		)
		prevV, prevA = outV, outA
	}

	total := sumDurations(infos) - float64(len(videoPaths)-1)*td
	return p.runFFmpeg(ctx, g.args(output), total, progress)
}

// ClampTransition limits a transition to half of the shortest clip.
func ClampTransition(d float64, durations []float64) float64 {
	for _, clip := range durations {
		if half := clip / 2; half < d {
			d = half
		}
	}
	return d
}

// TransitionOffsets returns the xfade offset of each transition: the start
// of transition i is the running length of the merged clips minus one
// transition per merge performed so far.
func TransitionOffsets(durations []float64, transition float64) []float64 {
	if len(durations) < 2 {
		return nil
	}
	offsets := make([]float64, 0, len(durations)-1)
	var elapsed float64
	for i := 1; i < len(durations); i++ {
		elapsed += durations[i-1] - transition
		offsets = append(offsets, elapsed)
	}
	return offsets
}

// probeAll probes every input and requires a video stream in each.
func (p *FFmpegProcessor) probeAll(ctx context.Context, paths []string) ([]*Info, error) {
	infos := make([]*Info, len(paths))
	for i, path := range paths {
		info, err := p.Probe(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", path, err)
		}
		if !info.HasVideo {
			return nil, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
		}
		infos[i] = info
	}
	return infos, nil
}

// compatible reports whether a stream copy can join the inputs.
func compatible(infos []*Info) bool {
	first := infos[0]
	for _, info := range infos[1:] {
		if info.VideoCodec != first.VideoCodec ||
			info.Width != first.Width || info.Height != first.Height ||
			info.PixelFormat != first.PixelFormat ||
			info.Transform != first.Transform ||
			info.HasAudio != first.HasAudio ||
			info.AudioCodec != first.AudioCodec ||
			info.SampleRate != first.SampleRate ||
			info.Channels != first.Channels {
			return false
		}
	}
	return true
}

func sumDurations(infos []*Info) float64 {
	var total float64
	for _, info := range infos {
		total += info.Duration
	}
	return total
}

// createConcatList creates a temporary file containing the list of video files
// in the format required by ffmpeg's concat demuxer.
func (p *FFmpegProcessor) createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		// Convert to absolute path for safety
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func (p *FFmpegProcessor) copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("write destination file: %w", err)
	}
	return out.Close()
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails. When progress is set and
// the expected output duration is known, ffmpeg's machine-readable progress
// stream is parsed and reported as a fraction.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string, total float64, progress ProgressFunc) error {
	track := progress != nil && total > 0
	if track {
		args = append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdout io.ReadCloser
	if track {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("ffmpeg stdout: %w", err)
		}
		stdout = pipe
	}

	err := cmd.Start()
	if err == nil {
		if stdout != nil {
			readProgress(stdout, total, progress)
		}
		err = cmd.Wait()
	}
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// readProgress consumes "key=value" lines written by "-progress". The
// out_time_us and out_time_ms keys both carry microseconds.
func readProgress(r io.Reader, total float64, fn ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			fn(min(float64(us)/1e6/total, 1))
		case "progress":
			if value == "end" {
				fn(1)
			}
		}
	}
	// Drain whatever is left so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
