// Package bootstrap provides dependency initialization for the media pipeline server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/photoreel/internal/audio"
	"github.com/maauso/photoreel/internal/config"
	"github.com/maauso/photoreel/internal/generator"
	"github.com/maauso/photoreel/internal/imaging"
	"github.com/maauso/photoreel/internal/job"
	"github.com/maauso/photoreel/internal/library"
	"github.com/maauso/photoreel/internal/media"
	"github.com/maauso/photoreel/internal/server"
	"github.com/maauso/photoreel/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Services server.Services
	Options  []server.HandlerOption

	// unsubscribe detaches the library change logger.
	unsubscribe func()
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media processor and audio extractor
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
	extractor := audio.NewFFmpegExtractor(cfg.FFmpegPath, processor, logger)

	// Initialize run records and the media library
	repo := job.NewMemoryRepository(job.WithHistory(cfg.JobHistory))
	lib := library.NewStore(logger)
	importer := library.NewImporter(lib, cfg.LibraryDir, logger)
	unsubscribe := lib.Subscribe(library.ObserverFunc(func(e library.Event) {
		logger.Debug("library changed",
			slog.String("event", string(e.Type)),
			slog.String("item_id", e.Item.ID),
			slog.Int("items", e.Len),
		)
	}))

	if cfg.CaptionFontPath != "" {
		if _, err := imaging.LoadFont(cfg.CaptionFontPath); err != nil {
			logger.Warn("caption font unavailable, using built-in face",
				slog.String("font_path", cfg.CaptionFontPath),
				slog.String("error", err.Error()),
			)
		}
	}

	gen, err := generator.New(processor, extractor, store, repo, GeneratorOptions(cfg), logger)
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	return &Dependencies{
		Services: server.Services{
			Generator: gen,
			Library:   lib,
			Importer:  importer,
			Jobs:      repo,
			Prober:    processor,
			Outputs:   store,
		},
		Options: []server.HandlerOption{
			server.WithMaxBodyBytes(cfg.MaxUploadMB << 20),
			server.WithDefaultFilter(cfg.DefaultFilter),
			server.WithDefaultCaption(cfg.CaptionText),
			server.WithResultsInLibrary(true),
		},
		unsubscribe: unsubscribe,
	}, nil
}

// GeneratorOptions maps the configuration onto generator options.
func GeneratorOptions(cfg *config.Config) generator.Options {
	opts := generator.DefaultOptions()
	opts.SecondsPerImage = cfg.SecondsPerImage
	opts.FrameRate = cfg.FrameRate
	opts.Transition = cfg.Transition
	opts.TransitionSec = cfg.TransitionSec
	opts.ImageScale = cfg.ImageScale
	opts.Caption = imaging.CaptionStyle{
		FontPath: cfg.CaptionFontPath,
		FontSize: cfg.CaptionFontSize,
		Margin:   opts.Caption.Margin,
	}
	opts.Publish = cfg.PublishResults
	opts.PublishPrefix = cfg.PublishPrefix
	return opts
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
