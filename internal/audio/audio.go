// Package audio extracts and exports the audio tracks of video files.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNoAudioTrack is returned when a video carries no audio stream.
	ErrNoAudioTrack = errors.New("no audio track")
	// ErrExportIncomplete is returned when an export did not complete.
	ErrExportIncomplete = errors.New("audio export did not complete")
)

// Extractor defines the interface for audio track operations on media files.
type Extractor interface {
	// ExtractTrack writes a new file at dst containing only the audio
	// streams of video, with their original timing. It fails with
	// ErrNoAudioTrack when there is nothing to extract. No partial file is
	// left behind on failure.
	ExtractTrack(ctx context.Context, video, dst string) error

	// Export encodes the audio of src into an M4A file at dst. It reports
	// false for any outcome other than a completed export, including
	// cancellation, without further detail.
	Export(ctx context.Context, src, dst string) bool
}

// WriteAudioTrack extracts the audio of video and exports it as M4A at dst.
// Extraction errors are returned as is; a failed export is reported as
// ErrExportIncomplete.
func WriteAudioTrack(ctx context.Context, x Extractor, video, dst string) error {
	// Matroska holds any codec, so the stream copy never needs a re-encode.
	track := strings.TrimSuffix(dst, ".m4a") + ".track.mka"
	if err := x.ExtractTrack(ctx, video, track); err != nil {
		return err
	}
	defer func() { _ = os.Remove(track) }()

	if !x.Export(ctx, track, dst) {
		return fmt.Errorf("%w: %s", ErrExportIncomplete, dst)
	}
	return nil
}
