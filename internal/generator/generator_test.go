package generator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/photoreel/internal/audio"
	"github.com/maauso/photoreel/internal/imaging"
	"github.com/maauso/photoreel/internal/job"
	"github.com/maauso/photoreel/internal/media"
	"github.com/maauso/photoreel/internal/storage"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Probe(ctx context.Context, path string) (*media.Info, error) {
	args := m.Called(ctx, path)
	info, _ := args.Get(0).(*media.Info)
	return info, args.Error(1)
}

func (m *mockProcessor) RenderSlideshow(ctx context.Context, frames []string, output string, opts media.SlideshowOpts, progress media.ProgressFunc) error {
	args := m.Called(ctx, frames, output, opts, progress)
	return args.Error(0)
}

func (m *mockProcessor) JoinVideos(ctx context.Context, videoPaths []string, output string, progress media.ProgressFunc) error {
	args := m.Called(ctx, videoPaths, output, progress)
	return args.Error(0)
}

func (m *mockProcessor) JoinWithTransition(ctx context.Context, videoPaths []string, output string, opts media.TransitionOpts, progress media.ProgressFunc) error {
	args := m.Called(ctx, videoPaths, output, opts, progress)
	return args.Error(0)
}

func (m *mockProcessor) ApplyFilter(ctx context.Context, src, output, graph string, progress media.ProgressFunc) error {
	args := m.Called(ctx, src, output, graph, progress)
	return args.Error(0)
}

func (m *mockProcessor) OverlayImage(ctx context.Context, src, overlay, output string, progress media.ProgressFunc) error {
	args := m.Called(ctx, src, overlay, output, progress)
	return args.Error(0)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractTrack(ctx context.Context, video, dst string) error {
	args := m.Called(ctx, video, dst)
	return args.Error(0)
}

func (m *mockExtractor) Export(ctx context.Context, src, dst string) bool {
	args := m.Called(ctx, src, dst)
	return args.Bool(0)
}

type fixture struct {
	gen   *Generator
	proc  *mockProcessor
	audio *mockExtractor
	repo  *job.MemoryRepository
	dir   string
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	opts := DefaultOptions()
	for _, fn := range mutate {
		fn(&opts)
	}

	f := &fixture{
		proc:  new(mockProcessor),
		audio: new(mockExtractor),
		repo:  job.NewMemoryRepository(),
		dir:   dir,
	}
	f.gen, err = New(f.proc, f.audio, store, f.repo, opts, nil)
	require.NoError(t, err)
	return f
}

// writeOutput simulates an encoder producing its output file.
func writeOutput(args mock.Arguments, outputIndex int) {
	_ = os.WriteFile(args.String(outputIndex), []byte("video"), 0600)
}

// progressAt returns a mock.Run hook that reports each fraction in turn.
func progressAt(progressIndex, outputIndex int, fractions ...float64) func(mock.Arguments) {
	return func(args mock.Arguments) {
		report := args.Get(progressIndex).(media.ProgressFunc)
		for _, f := range fractions {
			report(f)
		}
		writeOutput(args, outputIndex)
	}
}

func testImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte("clip"), 0600))
	}
	return paths
}

func wait(t *testing.T, task *Task) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)
	return res
}

func drain(t *testing.T, task *Task) []Progress {
	t.Helper()
	var updates []Progress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p, ok := <-task.Progress():
			if !ok {
				return updates
			}
			updates = append(updates, p)
		case <-timeout:
			t.Fatal("progress channel was not closed")
		}
	}
}

func record(t *testing.T, f *fixture, task *Task) *job.Job {
	t.Helper()
	j, err := f.repo.FindByID(context.Background(), task.ID())
	require.NoError(t, err)
	return j
}

func TestNew_InvalidOptions(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero seconds per image", func(o *Options) { o.SecondsPerImage = 0 }},
		{"frame rate too high", func(o *Options) { o.FrameRate = 240 }},
		{"unknown transition", func(o *Options) { o.Transition = "spin" }},
		{"zero image scale", func(o *Options) { o.ImageScale = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := New(new(mockProcessor), new(mockExtractor), store, job.NewMemoryRepository(), opts, nil)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestGenerate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gen.Generate(ctx, []image.Image{testImage(64, 64, color.White)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.gen.Generate(ctx, []image.Image{testImage(64, 64, color.White), image.NewRGBA(image.Rectangle{})})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.gen.Generate(ctx, []image.Image{nil, testImage(64, 64, color.White)})
	assert.ErrorIs(t, err, ErrValidation)

	assert.False(t, f.gen.Busy())
	f.proc.AssertNotCalled(t, "RenderSlideshow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerate_TallFirstImageIsLetterboxed(t *testing.T) {
	f := newFixture(t)

	var first image.Image
	f.proc.On("RenderSlideshow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			frames := args.Get(1).([]string)
			file, err := os.Open(frames[0])
			require.NoError(t, err)
			defer func() { _ = file.Close() }()
			first, _, err = imaging.Decode(file)
			require.NoError(t, err)
			writeOutput(args, 2)
		}).
		Return(nil)

	red := color.RGBA{R: 255, A: 255}
	task, err := f.gen.Generate(context.Background(), []image.Image{
		testImage(400, 4000, red),
		testImage(640, 480, color.White),
	})
	require.NoError(t, err)

	res := wait(t, task)
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	require.NotNil(t, first)

	assert.Equal(t, image.Rect(0, 0, 800, 1200), first.Bounds())
	r, g, b, _ := first.At(10, 600).RGBA()
	assert.Zero(t, r+g+b, "left column should be a black bar")
	r, _, _, _ = first.At(400, 600).RGBA()
	assert.Greater(t, r, uint32(0xf000), "center should carry the photo")
}

func TestGenerate_Success(t *testing.T) {
	f := newFixture(t)

	var frames []string
	f.proc.On("RenderSlideshow", mock.Anything, mock.Anything, mock.Anything,
		media.SlideshowOpts{SecondsPerImage: 2, FrameRate: 30}, mock.Anything).
		Run(func(args mock.Arguments) {
			frames = args.Get(1).([]string)
			for _, p := range frames {
				assert.FileExists(t, p)
			}
			progressAt(4, 2, 0.5, 1)(args)
		}).
		Return(nil)

	images := []image.Image{
		testImage(640, 480, color.White),
		testImage(480, 640, color.Black),
		testImage(800, 600, color.Gray{Y: 128}),
	}
	task, err := f.gen.Generate(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, job.KindSlideshow, task.Kind())

	updates := drain(t, task)
	res := wait(t, task)

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.FileExists(t, res.Path)
	assert.Empty(t, res.URL)
	assert.Len(t, frames, 3)
	for _, p := range frames {
		assert.NoFileExists(t, p, "frames must be removed after the run")
	}

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.True(t, last.Finished)
	assert.InDelta(t, 1.0, last.Fraction, 1e-9)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Fraction, updates[i-1].Fraction)
	}

	j := record(t, f, task)
	assert.Equal(t, job.StatusSucceeded, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, res.Path, j.OutputPath)
	assert.Len(t, j.Inputs, 3)
	assert.False(t, f.gen.Busy())
	assert.Nil(t, f.gen.Active())
}

func TestMergeMovies(t *testing.T) {
	f := newFixture(t)
	paths := touch(t, f.dir, "a.mp4", "b.mp4")

	f.proc.On("JoinVideos", mock.Anything, paths, mock.Anything, mock.Anything).
		Run(progressAt(3, 2, 0.3, 0.9)).
		Return(nil)

	task, err := f.gen.MergeMovies(context.Background(), paths)
	require.NoError(t, err)

	res := wait(t, task)
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, ".mp4", filepath.Ext(res.Path))
	assert.Equal(t, paths, record(t, f, task).Inputs)
	f.proc.AssertExpectations(t)
}

func TestMergeMovies_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gen.MergeMovies(ctx, []string{"only.mp4"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.gen.MergeWithAnimation(ctx, []string{"a.mp4", ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.gen.MergeWithAnimation(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMergeMovies_MissingInput(t *testing.T) {
	f := newFixture(t)
	paths := touch(t, f.dir, "a.mp4")
	paths = append(paths, filepath.Join(f.dir, "gone.mp4"))

	task, err := f.gen.MergeMovies(context.Background(), paths)
	require.NoError(t, err)

	res := wait(t, task)
	assert.ErrorIs(t, res.Err, ErrIO)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
	assert.Equal(t, job.StatusFailed, record(t, f, task).Status)
	f.proc.AssertNotCalled(t, "JoinVideos", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMergeWithAnimation_EncodingFailure(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Transition = "dissolve"
		o.TransitionSec = 0.5
	})
	paths := touch(t, f.dir, "a.mp4", "b.mp4", "c.mp4")

	wantOpts := media.TransitionOpts{Name: "dissolve", Duration: 0.5, FrameRate: 30}
	f.proc.On("JoinWithTransition", mock.Anything, paths, mock.Anything, wantOpts, mock.Anything).
		Run(func(args mock.Arguments) { writeOutput(args, 2) }).
		Return(&media.FFmpegError{Args: []string{"-i"}, Stderr: "boom", Err: errors.New("exit status 1")})

	task, err := f.gen.MergeWithAnimation(context.Background(), paths)
	require.NoError(t, err)

	updates := drain(t, task)
	res := wait(t, task)

	assert.ErrorIs(t, res.Err, ErrEncoding)
	var ffErr *media.FFmpegError
	assert.ErrorAs(t, res.Err, &ffErr)
	assert.Empty(t, res.Path)
	assert.True(t, updates[len(updates)-1].Finished)

	j := record(t, f, task)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Contains(t, j.Error, "encoding error")

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "partial output must be removed")
}

func TestGenerator_Busy(t *testing.T) {
	f := newFixture(t)
	paths := touch(t, f.dir, "a.mp4", "b.mp4")

	started := make(chan struct{})
	release := make(chan struct{})
	f.proc.On("JoinVideos", mock.Anything, paths, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
			writeOutput(args, 2)
		}).
		Return(nil).Once()

	task, err := f.gen.MergeMovies(context.Background(), paths)
	require.NoError(t, err)
	<-started

	assert.True(t, f.gen.Busy())
	assert.Same(t, task, f.gen.Active())

	_, err = f.gen.ApplyFilter(context.Background(), paths[0], "sepia")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.gen.MergeWithAnimation(context.Background(), paths)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	res := wait(t, task)
	require.True(t, res.OK())
	assert.False(t, f.gen.Busy())

	f.proc.On("ApplyFilter", mock.Anything, paths[0], mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { writeOutput(args, 2) }).
		Return(nil)
	next, err := f.gen.ApplyFilter(context.Background(), paths[0], "sepia")
	require.NoError(t, err)
	assert.True(t, wait(t, next).OK())
}

func TestGenerator_Cancel(t *testing.T) {
	f := newFixture(t)
	paths := touch(t, f.dir, "a.mp4", "b.mp4")

	started := make(chan struct{})
	f.proc.On("JoinVideos", mock.Anything, paths, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			writeOutput(args, 2)
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.Canceled)

	task, err := f.gen.MergeMovies(context.Background(), paths)
	require.NoError(t, err)
	<-started
	task.Cancel()

	res := wait(t, task)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, res.OK())

	j := record(t, f, task)
	assert.Equal(t, job.StatusCancelled, j.Status)
	assert.Empty(t, j.OutputPath)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "cancelled output must be removed")
}

func TestApplyFilter(t *testing.T) {
	f := newFixture(t)
	src := touch(t, f.dir, "clip.mp4")[0]
	graph, _ := media.LookupFilter("sepia")

	_, err := f.gen.ApplyFilter(context.Background(), src, "posterize")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "sepia")

	_, err = f.gen.ApplyFilter(context.Background(), "", "sepia")
	assert.ErrorIs(t, err, ErrValidation)

	f.proc.On("ApplyFilter", mock.Anything, src, mock.Anything, graph, mock.Anything).
		Run(progressAt(4, 2, 0.5)).
		Return(nil)

	task, err := f.gen.ApplyFilter(context.Background(), src, "CISepiaTone")
	require.NoError(t, err)
	assert.Equal(t, job.KindFilter, task.Kind())
	assert.True(t, wait(t, task).OK())
	f.proc.AssertExpectations(t)
}

func TestAddTextWithFrame(t *testing.T) {
	f := newFixture(t)
	src := touch(t, f.dir, "clip.mp4")[0]

	_, err := f.gen.AddTextWithFrame(context.Background(), src, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	f.proc.On("Probe", mock.Anything, src).Return(&media.Info{HasVideo: true, Width: 320, Height: 240}, nil)

	var overlay string
	f.proc.On("OverlayImage", mock.Anything, src, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			overlay = args.String(2)
			file, err := os.Open(overlay)
			if assert.NoError(t, err) {
				defer file.Close()
				cfg, _, err := image.DecodeConfig(file)
				assert.NoError(t, err)
				assert.Equal(t, 320, cfg.Width)
				assert.Equal(t, 240, cfg.Height)
			}
			progressAt(4, 3, 1)(args)
		}).
		Return(nil)

	task, err := f.gen.AddTextWithFrame(context.Background(), src, "Summer 2024")
	require.NoError(t, err)

	res := wait(t, task)
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.NoFileExists(t, overlay)
}

func TestAddTextWithFrame_NoVideo(t *testing.T) {
	f := newFixture(t)
	src := touch(t, f.dir, "voice.m4a")[0]

	f.proc.On("Probe", mock.Anything, src).Return(&media.Info{HasAudio: true}, nil)

	task, err := f.gen.AddTextWithFrame(context.Background(), src, "Title")
	require.NoError(t, err)

	res := wait(t, task)
	assert.ErrorIs(t, res.Err, ErrComposition)
	assert.ErrorIs(t, res.Err, media.ErrNoVideoStream)
}

func TestExtractAudio(t *testing.T) {
	t.Run("no audio track", func(t *testing.T) {
		f := newFixture(t)
		src := touch(t, f.dir, "silent.mp4")[0]
		f.audio.On("ExtractTrack", mock.Anything, src, mock.Anything).Return(audio.ErrNoAudioTrack)

		task, err := f.gen.ExtractAudio(context.Background(), src)
		require.NoError(t, err)

		res := wait(t, task)
		assert.ErrorIs(t, res.Err, ErrComposition)
		assert.ErrorIs(t, res.Err, audio.ErrNoAudioTrack)
	})

	t.Run("export incomplete", func(t *testing.T) {
		f := newFixture(t)
		src := touch(t, f.dir, "clip.mp4")[0]
		f.audio.On("ExtractTrack", mock.Anything, src, mock.Anything).Return(nil)
		f.audio.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(false)

		task, err := f.gen.ExtractAudio(context.Background(), src)
		require.NoError(t, err)

		res := wait(t, task)
		assert.ErrorIs(t, res.Err, ErrEncoding)
		assert.Equal(t, job.KindAudio, record(t, f, task).Kind)
	})

	t.Run("writes m4a", func(t *testing.T) {
		f := newFixture(t)
		src := touch(t, f.dir, "clip.mp4")[0]
		f.audio.On("ExtractTrack", mock.Anything, src, mock.Anything).Return(nil)
		f.audio.On("Export", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { writeOutput(args, 2) }).
			Return(true)

		task, err := f.gen.ExtractAudio(context.Background(), src)
		require.NoError(t, err)

		res := wait(t, task)
		require.True(t, res.OK(), "unexpected error: %v", res.Err)
		assert.Equal(t, ".m4a", filepath.Ext(res.Path))
	})
}

func TestGenerator_PublishWithoutObjectStorage(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Publish = true })
	src := touch(t, f.dir, "clip.mp4")[0]

	f.proc.On("ApplyFilter", mock.Anything, src, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { writeOutput(args, 2) }).
		Return(nil)

	task, err := f.gen.ApplyFilter(context.Background(), src, "mono")
	require.NoError(t, err)

	res := wait(t, task)
	assert.ErrorIs(t, res.Err, ErrIO)
	assert.ErrorIs(t, res.Err, storage.ErrS3NotConfigured)
	assert.Equal(t, job.StatusFailed, record(t, f, task).Status)
}
