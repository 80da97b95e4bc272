package generator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/photoreel/internal/imaging"
	"github.com/maauso/photoreel/internal/media"
)

// Options configures a Generator.
type Options struct {
	// SecondsPerImage is how long each photo stays on screen.
	SecondsPerImage float64 `validate:"gt=0,lte=60"`
	// FrameRate is the output frame rate of re-encoded videos.
	FrameRate int `validate:"min=1,max=120"`
	// Transition is the xfade transition of animated merges.
	Transition string `validate:"required"`
	// TransitionSec is the transition length in seconds.
	TransitionSec float64 `validate:"gt=0,lte=10"`
	// ImageScale is the display scale photos were captured at.
	ImageScale float64 `validate:"gt=0,lte=4"`
	// Caption styles title cards.
	Caption imaging.CaptionStyle
	// Publish uploads outputs through storage.Storage.Publish.
	Publish bool
	// PublishPrefix is prepended to published object keys.
	PublishPrefix string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		SecondsPerImage: 2,
		FrameRate:       30,
		Transition:      "fade",
		TransitionSec:   1,
		ImageScale:      1,
		Caption:         imaging.DefaultCaptionStyle(),
		PublishPrefix:   "videos",
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !media.IsTransition(o.Transition) {
		return validationError("unknown transition %q", o.Transition)
	}
	return nil
}
