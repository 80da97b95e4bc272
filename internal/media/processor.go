// Package media provides image and video processing capabilities.
package media

import "context"

// ProgressFunc receives the completed fraction of an encode, in [0, 1].
type ProgressFunc func(fraction float64)

// SlideshowOpts configures still-image video synthesis.
type SlideshowOpts struct {
	// SecondsPerImage is how long each frame stays on screen.
	SecondsPerImage float64
	// FrameRate is the output frame rate.
	FrameRate int
}

// TransitionOpts configures animated merges.
type TransitionOpts struct {
	// Name is an xfade transition, see IsTransition.
	Name string
	// Duration is the overlap between adjacent clips in seconds.
	Duration float64
	// FrameRate is the output frame rate.
	FrameRate int
}

// Processor defines the interface for image and video processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// Probe inspects a media file and reports its streams and display matrix.
	Probe(ctx context.Context, path string) (*Info, error)

	// RenderSlideshow encodes still frames of identical size into a video,
	// each shown for opts.SecondsPerImage, with a silent stereo audio track.
	RenderSlideshow(ctx context.Context, frames []string, output string, opts SlideshowOpts, progress ProgressFunc) error

	// JoinVideos concatenates multiple video files into a single output file.
	// It uses a stream copy when the inputs are compatible and re-encodes
	// with per-clip normalization otherwise.
	JoinVideos(ctx context.Context, videoPaths []string, output string, progress ProgressFunc) error

	// JoinWithTransition concatenates videos with an animated transition
	// between adjacent clips.
	JoinWithTransition(ctx context.Context, videoPaths []string, output string, opts TransitionOpts, progress ProgressFunc) error

	// ApplyFilter runs an ffmpeg filter chain over every frame. Audio is
	// copied unchanged.
	ApplyFilter(ctx context.Context, src, output, graph string, progress ProgressFunc) error

	// OverlayImage composites a still image over every frame. Audio is
	// copied unchanged.
	OverlayImage(ctx context.Context, src, overlay, output string, progress ProgressFunc) error
}
