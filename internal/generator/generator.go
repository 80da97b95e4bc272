// Package generator is the media pipeline facade. It turns still images
// into slideshow videos, merges clips with or without animated transitions,
// applies filters, overlays titles and extracts audio. Every call starts a
// Task that reports progress and a terminal Result; at most one task runs
// per Generator.
package generator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/maauso/photoreel/internal/audio"
	"github.com/maauso/photoreel/internal/imaging"
	"github.com/maauso/photoreel/internal/job"
	"github.com/maauso/photoreel/internal/media"
	"github.com/maauso/photoreel/internal/storage"
)

// minMergeInputs is the smallest number of inputs a slideshow or merge takes.
const minMergeInputs = 2

// Generator runs pipeline operations one at a time.
type Generator struct {
	proc    media.Processor
	audio   audio.Extractor
	store   storage.Storage
	repo    job.Repository
	opts    Options
	logger  *slog.Logger
	busy    atomic.Bool
	current atomic.Pointer[Task]
}

// New creates a Generator. It returns ErrValidation if opts are invalid.
func New(proc media.Processor, extractor audio.Extractor, store storage.Storage, repo job.Repository, opts Options, logger *slog.Logger) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		proc:   proc,
		audio:  extractor,
		store:  store,
		repo:   repo,
		opts:   opts,
		logger: logger,
	}, nil
}

// Busy reports whether a task is in flight.
func (g *Generator) Busy() bool { return g.busy.Load() }

// Active returns the running task, or nil.
func (g *Generator) Active() *Task { return g.current.Load() }

// Generate renders images into a slideshow, one timed segment per image in
// order. The canvas is the video-safe size of the first image. Images are
// rescaled onto it when their aspect ratio matches and letterboxed otherwise.
func (g *Generator) Generate(ctx context.Context, images []image.Image) (*Task, error) {
	if len(images) < minMergeInputs {
		return nil, validationError("need at least %d images, got %d", minMergeInputs, len(images))
	}
	for i, img := range images {
		if img == nil || img.Bounds().Empty() {
			return nil, validationError("image %d is empty", i)
		}
	}

	inputs := make([]string, len(images))
	for i, img := range images {
		inputs[i] = fmt.Sprintf("image#%d(%dx%d)", i, img.Bounds().Dx(), img.Bounds().Dy())
	}

	return g.start(ctx, job.KindSlideshow, inputs, func(ctx context.Context, r *run) (string, error) {
		first := images[0].Bounds()
		size := imaging.VideoSafeSize(first.Dx(), first.Dy(), g.opts.ImageScale)
		if size.IsZero() {
			return "", fmt.Errorf("%w: %dx%d", imaging.ErrEmptyImage, first.Dx(), first.Dy())
		}

		frames := make([]string, 0, len(images))
		for i, img := range images {
			frame := imaging.Normalize(img, size)
			if frame == nil {
				return "", fmt.Errorf("image %d: %w", i, imaging.ErrEmptyImage)
			}
			p, err := r.saveImage(ctx, fmt.Sprintf("frame%03d", i), frame)
			if err != nil {
				return "", err
			}
			frames = append(frames, p)
			r.report(0.2 * float64(i+1) / float64(len(images)))
		}

		out, err := r.output("slideshow")
		if err != nil {
			return "", err
		}
		opts := media.SlideshowOpts{SecondsPerImage: g.opts.SecondsPerImage, FrameRate: g.opts.FrameRate}
		return out, g.proc.RenderSlideshow(ctx, frames, out, opts, r.stage(0.2, 1))
	})
}

// MergeMovies concatenates videos in order.
func (g *Generator) MergeMovies(ctx context.Context, paths []string) (*Task, error) {
	if err := validateMergeInputs(paths); err != nil {
		return nil, err
	}
	return g.start(ctx, job.KindMerge, paths, func(ctx context.Context, r *run) (string, error) {
		if err := requireFiles(paths...); err != nil {
			return "", err
		}
		out, err := r.output("merge")
		if err != nil {
			return "", err
		}
		return out, g.proc.JoinVideos(ctx, paths, out, r.stage(0, 1))
	})
}

// MergeWithAnimation concatenates videos in order with the configured
// transition between adjacent clips.
func (g *Generator) MergeWithAnimation(ctx context.Context, paths []string) (*Task, error) {
	if err := validateMergeInputs(paths); err != nil {
		return nil, err
	}
	return g.start(ctx, job.KindMergeAnimated, paths, func(ctx context.Context, r *run) (string, error) {
		if err := requireFiles(paths...); err != nil {
			return "", err
		}
		out, err := r.output("merge-animated")
		if err != nil {
			return "", err
		}
		opts := media.TransitionOpts{
			Name:      g.opts.Transition,
			Duration:  g.opts.TransitionSec,
			FrameRate: g.opts.FrameRate,
		}
		return out, g.proc.JoinWithTransition(ctx, paths, out, opts, r.stage(0, 1))
	})
}

// ApplyFilter applies a named filter to every frame of the video at src.
// Audio is kept as is.
func (g *Generator) ApplyFilter(ctx context.Context, src, filter string) (*Task, error) {
	graph, ok := media.LookupFilter(filter)
	if !ok {
		return nil, validationError("unknown filter %q, expected one of %s", filter, strings.Join(media.FilterNames(), ", "))
	}
	if src == "" {
		return nil, validationError("source video is required")
	}
	return g.start(ctx, job.KindFilter, []string{src}, func(ctx context.Context, r *run) (string, error) {
		if err := requireFiles(src); err != nil {
			return "", err
		}
		out, err := r.output("filter")
		if err != nil {
			return "", err
		}
		return out, g.proc.ApplyFilter(ctx, src, out, graph, r.stage(0, 1))
	})
}

// AddTextWithFrame overlays text in a framed caption for the whole duration
// of the video at src. Audio is kept as is.
func (g *Generator) AddTextWithFrame(ctx context.Context, src, text string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("caption text is empty")
	}
	if src == "" {
		return nil, validationError("source video is required")
	}
	return g.start(ctx, job.KindTitle, []string{src}, func(ctx context.Context, r *run) (string, error) {
		if err := requireFiles(src); err != nil {
			return "", err
		}
		info, err := g.proc.Probe(ctx, src)
		if err != nil {
			return "", fmt.Errorf("probe video: %w", err)
		}
		if !info.HasVideo {
			return "", fmt.Errorf("%w: %s", media.ErrNoVideoStream, src)
		}

		w, h := info.DisplaySize()
		card, err := imaging.Caption(text, imaging.Size{Width: w, Height: h}, g.opts.Caption)
		if err != nil {
			return "", err
		}
		cardPath, err := r.saveImage(ctx, "caption", card)
		if err != nil {
			return "", err
		}
		r.report(0.05)

		out, err := r.output("title")
		if err != nil {
			return "", err
		}
		return out, g.proc.OverlayImage(ctx, src, cardPath, out, r.stage(0.05, 1))
	})
}

// ExtractAudio writes the audio of the video at src to an M4A file.
func (g *Generator) ExtractAudio(ctx context.Context, src string) (*Task, error) {
	if src == "" {
		return nil, validationError("source video is required")
	}
	return g.start(ctx, job.KindAudio, []string{src}, func(ctx context.Context, r *run) (string, error) {
		if err := requireFiles(src); err != nil {
			return "", err
		}
		out, err := r.outputExt("audio", ".m4a")
		if err != nil {
			return "", err
		}
		return out, audio.WriteAudioTrack(ctx, g.audio, src, out)
	})
}

func validateMergeInputs(paths []string) error {
	if len(paths) < minMergeInputs {
		return validationError("need at least %d videos, got %d", minMergeInputs, len(paths))
	}
	for i, p := range paths {
		if p == "" {
			return validationError("video %d has no path", i)
		}
	}
	return nil
}

func requireFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	return nil
}

// workFunc produces the output of a run and returns its path.
type workFunc func(ctx context.Context, r *run) (string, error)

// run carries the per-invocation state of a task.
type run struct {
	g         *Generator
	task      *Task
	job       *job.Job
	recordCtx context.Context
	temps     []string
}

// report publishes progress to the task and mirrors whole percentages into
// the run record.
func (r *run) report(fraction float64) {
	r.task.report(fraction)
	if r.job.UpdateProgress(int(fraction * 100)) {
		r.g.save(r.recordCtx, r.job)
	}
}

// output reserves a fresh MP4 output path.
func (r *run) output(name string) (string, error) {
	return r.outputExt(name, ".mp4")
}

func (r *run) outputExt(name, ext string) (string, error) {
	p, err := r.g.store.NewTempPath(name, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	return p, nil
}

// saveImage writes img as a PNG temp file that is removed after the run.
func (r *run) saveImage(ctx context.Context, name string, img image.Image) (string, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	p, err := r.g.store.SaveTemp(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	r.temps = append(r.temps, p)
	return p, nil
}

// stage maps the progress of one step onto [from, to] of the whole task.
func (r *run) stage(from, to float64) media.ProgressFunc {
	return func(f float64) {
		r.report(from + (to-from)*f)
	}
}

// start claims the generator, records the run and executes work on a
// goroutine.
func (g *Generator) start(ctx context.Context, kind job.Kind, inputs []string, work workFunc) (*Task, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	j := job.New(kind)
	j.SetInputs(inputs)
	if err := g.repo.Save(ctx, j); err != nil {
		g.busy.Store(false)
		return nil, fmt.Errorf("%w: save run: %w", ErrIO, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	task := newTask(j.ID, kind, cancel)
	g.current.Store(task)

	g.logger.Info("generation started",
		slog.String("job_id", j.ID),
		slog.String("kind", string(kind)),
		slog.Int("inputs", len(inputs)),
	)

	go g.execute(runCtx, task, j, work)
	return task, nil
}

func (g *Generator) execute(ctx context.Context, task *Task, j *job.Job, work workFunc) {
	defer task.cancel()

	// Record updates outlive a cancelled run.
	recordCtx := context.WithoutCancel(ctx)
	r := &run{g: g, task: task, job: j, recordCtx: recordCtx}

	_ = j.Start()
	g.save(recordCtx, j)

	out, err := work(ctx, r)

	var url string
	if err == nil && g.opts.Publish {
		key := path.Join(g.opts.PublishPrefix, j.ID+filepath.Ext(out))
		url, err = g.store.Publish(ctx, key, out)
		if err != nil {
			err = fmt.Errorf("%w: publish: %w", ErrIO, err)
		}
	}

	g.cleanup(recordCtx, j.ID, r.temps)

	var res Result
	switch {
	case err == nil:
		res = Result{Path: out, URL: url}
		_ = j.Succeed(out, url)
		g.logger.Info("generation succeeded",
			slog.String("job_id", j.ID),
			slog.String("output", out),
			slog.String("video_url", url),
		)
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		g.removeOutput(j.ID, out)
		res = Result{Err: fmt.Errorf("generation cancelled: %w", context.Canceled)}
		_ = j.Cancel()
		g.logger.Info("generation cancelled", slog.String("job_id", j.ID))
	default:
		g.removeOutput(j.ID, out)
		err = classify(err)
		res = Result{Err: err}
		_ = j.Fail(err.Error())
		g.logger.Error("generation failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
	g.save(recordCtx, j)

	g.current.CompareAndSwap(task, nil)
	g.busy.Store(false)
	task.finish(res)
}

func (g *Generator) save(ctx context.Context, j *job.Job) {
	if err := g.repo.Save(ctx, j); err != nil {
		g.logger.Warn("failed to save run record",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (g *Generator) cleanup(ctx context.Context, jobID string, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := g.store.CleanupTemp(ctx, paths); err != nil {
		g.logger.Warn("failed to clean up temp files",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (g *Generator) removeOutput(jobID, out string) {
	if out == "" {
		return
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		g.logger.Warn("failed to remove partial output",
			slog.String("job_id", jobID),
			slog.String("path", out),
			slog.String("error", err.Error()),
		)
	}
}
