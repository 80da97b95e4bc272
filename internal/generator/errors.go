package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/maauso/photoreel/internal/audio"
	"github.com/maauso/photoreel/internal/imaging"
	"github.com/maauso/photoreel/internal/media"
)

// Error categories. Every failure reported by the generator wraps exactly
// one of them.
var (
	// ErrValidation is returned before any work starts when the input is
	// unusable: too few items, an unknown filter, empty caption text.
	ErrValidation = errors.New("validation error")
	// ErrComposition is reported when an input has no track to operate on.
	ErrComposition = errors.New("composition error")
	// ErrEncoding is reported when ffmpeg did not produce an output.
	ErrEncoding = errors.New("encoding error")
	// ErrIO is reported for file system and upload failures.
	ErrIO = errors.New("io error")
	// ErrBusy is returned when an operation is already in flight.
	ErrBusy = errors.New("generator busy")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// classify wraps err with its category. Errors that already carry one,
// and cancellations, are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, cat := range []error{ErrValidation, ErrComposition, ErrEncoding, ErrIO, ErrBusy, context.Canceled, context.DeadlineExceeded} {
		if errors.Is(err, cat) {
			return err
		}
	}

	var ffErr *media.FFmpegError
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, audio.ErrNoAudioTrack),
		errors.Is(err, media.ErrNoVideoStream),
		errors.Is(err, media.ErrNoVideoPaths),
		errors.Is(err, media.ErrNoFrames),
		errors.Is(err, media.ErrInvalidDimensions),
		errors.Is(err, imaging.ErrEmptyImage):
		return fmt.Errorf("%w: %w", ErrComposition, err)
	case errors.As(err, &ffErr),
		errors.Is(err, media.ErrFFprobeExecution),
		errors.Is(err, audio.ErrExportIncomplete):
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	case errors.As(err, &pathErr), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrIO, err)
	default:
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}
}
