package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/maauso/photoreel/internal/media"
)

// Prober reports the streams of a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.Info, error)
}

// FFmpegExtractor implements Extractor using the ffmpeg CLI.
type FFmpegExtractor struct {
	ffmpegPath string
	prober     Prober
	logger     *slog.Logger
}

// NewFFmpegExtractor creates a new FFmpegExtractor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegExtractor(ffmpegPath string, prober Prober, logger *slog.Logger) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath, prober: prober, logger: logger}
}

// Verify interface implementation at compile time.
var _ Extractor = (*FFmpegExtractor)(nil)

// ExtractTrack implements Extractor.ExtractTrack with a stream copy of every
// audio stream.
func (x *FFmpegExtractor) ExtractTrack(ctx context.Context, video, dst string) error {
	info, err := x.prober.Probe(ctx, video)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}
	if !info.HasAudio {
		return fmt.Errorf("%w: %s", ErrNoAudioTrack, video)
	}

	args := []string{
		"-y",        // Overwrite output
		"-i", video, // Input video
		"-vn",         // Drop video
		"-map", "0:a", // Every audio stream
		"-c:a", "copy", // Copy without re-encoding
		dst,
	}
	if _, err := x.run(ctx, args); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}

// Export implements Extractor.Export by encoding AAC into an ipod container.
func (x *FFmpegExtractor) Export(ctx context.Context, src, dst string) bool {
	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-map", "0:a:0",
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "ipod", // M4A
		dst,
	}
	stderr, err := x.run(ctx, args)
	if err != nil {
		_ = os.Remove(dst)
		x.logger.Debug("audio export failed", slog.String("src", src), slog.String("error", err.Error()))
		return false
	}

	if d, ok := parseDuration(stderr); ok {
		x.logger.Info("audio exported", slog.String("dst", dst), slog.Float64("duration_sec", d))
	}
	return true
}

// run executes ffmpeg and returns its stderr.
func (x *FFmpegExtractor) run(ctx context.Context, args []string) (string, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, x.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return "", &media.FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stderr.String(), nil
}

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// parseDuration reads the first "Duration: HH:MM:SS.ms" line ffmpeg prints
// for its input.
func parseDuration(output string) (float64, bool) {
	matches := durationRe.FindStringSubmatch(output)
	if len(matches) < 5 {
		return 0, false
	}

	hours, _ := strconv.ParseFloat(matches[1], 64)
	minutes, _ := strconv.ParseFloat(matches[2], 64)
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	frac, _ := strconv.ParseFloat(matches[4], 64)

	// Fractional digits vary in precision
	divisor := 1.0
	for range len(matches[4]) {
		divisor *= 10
	}

	return hours*3600 + minutes*60 + seconds + frac/divisor, true
}
