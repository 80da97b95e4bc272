// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/photoreel/internal/media"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConfig is returned when a value is out of range.
	ErrInvalidConfig = errors.New("config: invalid value")
	// ErrPublishRequiresS3 is returned when PUBLISH_RESULTS is set without
	// S3_BUCKET and S3_REGION.
	ErrPublishRequiresS3 = errors.New("config: PUBLISH_RESULTS requires S3_BUCKET and S3_REGION")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int   `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	MaxUploadMB int64 `env:"MAX_UPLOAD_MB, default=256" json:"max_upload_mb" validate:"min=1"`

	// Storage settings
	TempDir    string `env:"TEMP_DIR, default=/tmp/photoreel" json:"temp_dir" validate:"required"`
	LibraryDir string `env:"LIBRARY_DIR, default=/tmp/photoreel/library" json:"library_dir" validate:"required"`
	JobHistory int    `env:"JOB_HISTORY, default=100" json:"job_history" validate:"min=0"` // 0 keeps every run

	// Tooling
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Rendering settings
	SecondsPerImage float64 `env:"SECONDS_PER_IMAGE, default=2" json:"seconds_per_image" validate:"gt=0,lte=60"`
	FrameRate       int     `env:"FRAME_RATE, default=30" json:"frame_rate" validate:"min=1,max=120"`
	Transition      string  `env:"TRANSITION, default=fade" json:"transition" validate:"required,transition"`
	TransitionSec   float64 `env:"TRANSITION_SEC, default=1" json:"transition_sec" validate:"gt=0,lte=10"`
	ImageScale      float64 `env:"IMAGE_SCALE, default=1" json:"image_scale" validate:"gt=0,lte=4"`
	DefaultFilter   string  `env:"DEFAULT_FILTER, default=sepia" json:"default_filter" validate:"required,filter"`
	CaptionText     string  `env:"CAPTION_TEXT" json:"caption_text,omitempty"`
	CaptionFontPath string  `env:"CAPTION_FONT_PATH" json:"caption_font_path,omitempty"`
	CaptionFontSize float64 `env:"CAPTION_FONT_SIZE, default=48" json:"caption_font_size" validate:"gt=0"`

	// Publishing settings
	PublishResults bool   `env:"PUBLISH_RESULTS, default=false" json:"publish_results"`
	PublishPrefix  string `env:"PUBLISH_PREFIX, default=videos" json:"publish_prefix"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=json text JSON TEXT"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`                                        // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newValidator returns a validator that also knows the "filter" and
// "transition" tags, which accept the names the renderer supports.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("filter", func(fl validator.FieldLevel) bool {
		_, ok := media.LookupFilter(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("transition", func(fl validator.FieldLevel) bool {
		return media.IsTransition(fl.Field().String())
	})
	return v
}

// Validate checks value ranges, filter and transition names, and
// cross-field requirements.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.PublishResults && !c.S3Enabled() {
		return ErrPublishRequiresS3
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, LibraryDir: %s, SecondsPerImage: %g, FrameRate: %d, Transition: %s, PublishResults: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.LibraryDir,
		c.SecondsPerImage,
		c.FrameRate,
		c.Transition,
		c.PublishResults,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
