package media

import (
	"context"
	"fmt"
	"strings"
)

const defaultFrameRate = 30

// clipGraph accumulates inputs and a filter_complex for multi-clip encodes.
type clipGraph struct {
	inputs  []string
	filters []string
}

// newClipGraph adds one input per clip and normalizes each one to labels
// [vN] and [aN]: scaled and padded to the first clip's display size at a
// common frame rate, with stereo audio. Clips without audio get a silent
// track of the same length so the concat and crossfade filters line up.
func newClipGraph(paths []string, infos []*Info, fps int) (*clipGraph, error) {
	w, h := infos[0].DisplaySize()
	w, h = w&^1, h&^1
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}

	g := &clipGraph{}
	for _, path := range paths {
		g.inputs = append(g.inputs, "-i", path)
	}

	silent := len(paths)
	for i, info := range infos {
		g.filters = append(g.filters, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,fps=%d,format=yuv420p,settb=AVTB[v%d]",
			i, w, h, w, h, fps, i))

		src := fmt.Sprintf("%d:a", i)
		if !info.HasAudio {
			g.inputs = append(g.inputs,
				"-f", "lavfi",
				"-t", fmt.Sprintf("%.3f", info.Duration),
				"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", audioSampleRate))
			src = fmt.Sprintf("%d:a", silent)
			silent++
		}
		g.filters = append(g.filters, fmt.Sprintf(
			"[%s]aresample=%d,aformat=sample_fmts=fltp:channel_layouts=stereo,asetpts=PTS-STARTPTS[a%d]",
			src, audioSampleRate, i))
	}

	return g, nil
}

// args returns the full ffmpeg argument list mapping [v] and [a] to output.
func (g *clipGraph) args(output string) []string {
	args := append([]string{"-y"}, g.inputs...)
	args = append(args,
		"-filter_complex", strings.Join(g.filters, ";"),
		"-map", "[v]",
		"-map", "[a]",
	)
	args = append(args, videoEncodeArgs()...)
	args = append(args, "-c:a", "aac", "-b:a", audioBitrate)
	return append(args, "-movflags", "+faststart", output)
}

func videoEncodeArgs() []string {
	return []string{
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", videoCRF, // Quality (lower = better, 23 is default)
		"-pix_fmt", "yuv420p", // Pixel format for compatibility
	}
}

// RenderSlideshow encodes still frames into a video. Every frame must have
// the same even dimensions; each one is held for opts.SecondsPerImage. A
// silent stereo track is added so the result can be merged like any clip.
func (p *FFmpegProcessor) RenderSlideshow(ctx context.Context, frames []string, output string, opts SlideshowOpts, progress ProgressFunc) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if opts.SecondsPerImage <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, opts.SecondsPerImage)
	}
	fps := opts.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}

	per := fmt.Sprintf("%.3f", opts.SecondsPerImage)
	total := opts.SecondsPerImage * float64(len(frames))

	args := []string{"-y"}
	for _, frame := range frames {
		args = append(args,
			"-loop", "1", // Loop the input image
			"-framerate", fmt.Sprintf("%d", fps),
			"-t", per, // Hold time
			"-i", frame,
		)
	}
	args = append(args,
		"-f", "lavfi",
		"-t", fmt.Sprintf("%.3f", total),
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", audioSampleRate),
	)

	var filters []string
	var concatIn strings.Builder
	for i := range frames {
		filters = append(filters, fmt.Sprintf("[%d:v]setsar=1,format=yuv420p[v%d]", i, i))
		fmt.Fprintf(&concatIn, "[v%d]", i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", concatIn.String(), len(frames)))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[v]",
		"-map", fmt.Sprintf("%d:a", len(frames)),
		"-r", fmt.Sprintf("%d", fps),
	)
	args = append(args, videoEncodeArgs()...)
	args = append(args,
		"-c:a", "aac", "-b:a", audioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		output,
	)

	return p.runFFmpeg(ctx, args, total, progress)
}

// ApplyFilter runs an ffmpeg filter chain over every video frame. The audio
// streams are copied, so their duration is unchanged.
func (p *FFmpegProcessor) ApplyFilter(ctx context.Context, src, output, graph string, progress ProgressFunc) error {
	info, err := p.Probe(ctx, src)
	if err != nil {
		return fmt.Errorf("probe %s: %w", src, err)
	}
	if !info.HasVideo {
		return fmt.Errorf("%w: %s", ErrNoVideoStream, src)
	}

	args := []string{
		"-y",
		"-i", src,
		"-map", "0:v:0",
		"-map", "0:a?", // Keep every audio stream, if any
		"-vf", graph + ",format=yuv420p",
	}
	args = append(args, videoEncodeArgs()...)
	args = append(args,
		"-c:a", "copy",
		"-movflags", "+faststart",
		output,
	)

	return p.runFFmpeg(ctx, args, info.Duration, progress)
}

// OverlayImage composites a still image, sized to the video's display size,
// over every frame for the whole duration. Audio streams are copied.
func (p *FFmpegProcessor) OverlayImage(ctx context.Context, src, overlay, output string, progress ProgressFunc) error {
	info, err := p.Probe(ctx, src)
	if err != nil {
		return fmt.Errorf("probe %s: %w", src, err)
	}
	if !info.HasVideo {
		return fmt.Errorf("%w: %s", ErrNoVideoStream, src)
	}

	args := []string{
		"-y",
		"-i", src,
		"-loop", "1",
		"-i", overlay,
		"-filter_complex", "[0:v][1:v]overlay=0:0:shortest=1:format=auto,format=yuv420p[v]",
		"-map", "[v]",
		"-map", "0:a?",
	}
	args = append(args, videoEncodeArgs()...)
	args = append(args,
		"-c:a", "copy",
		"-movflags", "+faststart",
		output,
	)

	return p.runFFmpeg(ctx, args, info.Duration, progress)
}
