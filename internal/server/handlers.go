package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/photoreel/internal/generator"
	"github.com/maauso/photoreel/internal/job"
	"github.com/maauso/photoreel/internal/library"
	"github.com/maauso/photoreel/internal/media"
	"github.com/maauso/photoreel/internal/storage"
)

const defaultMaxBodyBytes = 256 << 20

// Prober inspects media files.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.Info, error)
}

// Services are the components the handlers drive.
type Services struct {
	Generator *generator.Generator
	Library   *library.Store
	Importer  *library.Importer
	Jobs      job.Repository
	Prober    Prober
	// Outputs holds the files jobs produce.
	Outputs storage.Storage
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	svc            Services
	validator      *validator.Validate
	logger         *slog.Logger
	maxBodyBytes   int64
	defaultFilter  string
	defaultCaption string
	keepResults    bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithDefaultFilter sets the filter used when a request names none.
func WithDefaultFilter(name string) HandlerOption {
	return func(h *Handlers) {
		h.defaultFilter = name
	}
}

// WithDefaultCaption sets the caption used when a request has no text.
func WithDefaultCaption(text string) HandlerOption {
	return func(h *Handlers) {
		h.defaultCaption = text
	}
}

// WithResultsInLibrary appends every produced video to the library.
func WithResultsInLibrary(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.keepResults = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		svc:          svc,
		validator:    validator.New(),
		logger:       logger,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Busy: h.svc.Generator.Busy()})
}

// ListItems handles GET /items requests.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.svc.Library.Snapshot()
	resp := ListItemsResponse{Items: make([]ItemResponse, 0, len(items)), Count: len(items)}
	for _, it := range items {
		resp.Items = append(resp.Items, toItemResponse(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteItems handles DELETE /items requests.
func (h *Handlers) DeleteItems(w http.ResponseWriter, r *http.Request) {
	h.svc.Library.DeleteAll()
	w.WriteHeader(http.StatusNoContent)
}

// AddPhoto handles POST /items/photos requests.
func (h *Handlers) AddPhoto(w http.ResponseWriter, r *http.Request) {
	var req AddPhotoRequest
	if !h.decode(w, r, &req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	item, err := h.svc.Importer.ImportPhoto(bytes.NewReader(data))
	if err != nil {
		h.logger.Warn("failed to import photo", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_IMAGE")
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// AddVideo handles POST /items/videos requests.
func (h *Handlers) AddVideo(w http.ResponseWriter, r *http.Request) {
	var req AddVideoRequest
	if !h.decode(w, r, &req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.VideoBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "video_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	item, err := h.svc.Importer.ImportVideo(req.Filename, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, library.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to import video",
			slog.String("filename", req.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store video", "IMPORT_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// ItemInfo handles GET /items/{id}/info requests.
func (h *Handlers) ItemInfo(w http.ResponseWriter, r *http.Request) {
	item, ok := h.findItem(w, r.PathValue("id"))
	if !ok {
		return
	}

	resp := ItemInfoResponse{ID: item.ID, Kind: string(item.Kind)}
	if item.Kind == library.KindPhoto {
		b := item.Photo.Bounds()
		resp.Width, resp.Height = b.Dx(), b.Dy()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	info, err := h.svc.Prober.Probe(r.Context(), item.VideoPath)
	if err != nil {
		h.logger.Error("failed to probe video",
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "video cannot be inspected", "PROBE_FAILED")
		return
	}

	o := info.Orientation()
	resp.Width, resp.Height = info.Width, info.Height
	resp.DisplayWidth, resp.DisplayHeight = info.DisplaySize()
	resp.Duration = info.Duration
	resp.HasAudio = info.HasAudio
	resp.Orientation = string(o.Orientation)
	resp.Device = string(o.Device)
	writeJSON(w, http.StatusOK, resp)
}

// CreateSlideshow handles POST /jobs/slideshow requests.
func (h *Handlers) CreateSlideshow(w http.ResponseWriter, r *http.Request) {
	var req CreateSlideshowRequest
	if !h.decode(w, r, &req) {
		return
	}

	items, ok := h.selectItems(w, req.ItemIDs, library.KindPhoto)
	if !ok {
		return
	}
	images := make([]image.Image, len(items))
	for i, it := range items {
		images[i] = it.Photo
	}

	task, err := h.svc.Generator.Generate(context.WithoutCancel(r.Context()), images)
	h.started(w, r, task, err)
}

// CreateMerge handles POST /jobs/merge requests.
func (h *Handlers) CreateMerge(w http.ResponseWriter, r *http.Request) {
	var req CreateMergeRequest
	if !h.decode(w, r, &req) {
		return
	}

	items, ok := h.selectItems(w, req.ItemIDs, library.KindVideo)
	if !ok {
		return
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.VideoPath
	}

	ctx := context.WithoutCancel(r.Context())
	var task *generator.Task
	var err error
	if req.Animated {
		task, err = h.svc.Generator.MergeWithAnimation(ctx, paths)
	} else {
		task, err = h.svc.Generator.MergeMovies(ctx, paths)
	}
	h.started(w, r, task, err)
}

// CreateFilter handles POST /jobs/filter requests.
func (h *Handlers) CreateFilter(w http.ResponseWriter, r *http.Request) {
	var req CreateFilterRequest
	if !h.decode(w, r, &req) {
		return
	}
	src, ok := h.resolveSource(w, r, req.SourceRequest)
	if !ok {
		return
	}

	filter := req.Filter
	if filter == "" {
		filter = h.defaultFilter
	}
	task, err := h.svc.Generator.ApplyFilter(context.WithoutCancel(r.Context()), src, filter)
	h.started(w, r, task, err)
}

// CreateTitle handles POST /jobs/title requests.
func (h *Handlers) CreateTitle(w http.ResponseWriter, r *http.Request) {
	var req CreateTitleRequest
	if !h.decode(w, r, &req) {
		return
	}
	src, ok := h.resolveSource(w, r, req.SourceRequest)
	if !ok {
		return
	}

	text := req.Text
	if text == "" {
		text = h.defaultCaption
	}
	task, err := h.svc.Generator.AddTextWithFrame(context.WithoutCancel(r.Context()), src, text)
	h.started(w, r, task, err)
}

// CreateAudio handles POST /jobs/audio requests.
func (h *Handlers) CreateAudio(w http.ResponseWriter, r *http.Request) {
	var req CreateAudioRequest
	if !h.decode(w, r, &req) {
		return
	}
	src, ok := h.resolveSource(w, r, req.SourceRequest)
	if !ok {
		return
	}

	task, err := h.svc.Generator.ExtractAudio(context.WithoutCancel(r.Context()), src)
	h.started(w, r, task, err)
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.Jobs.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs)), Count: len(jobs)}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	foundJob, ok := h.findJob(r.Context(), w, jobID)
	if !ok {
		return
	}

	resp := toJobResponse(foundJob)

	// Include the output if succeeded and not published
	if foundJob.Status == job.StatusSucceeded && foundJob.VideoURL == "" && foundJob.OutputPath != "" {
		data, err := h.readOutput(r.Context(), foundJob.OutputPath)
		if err != nil {
			h.logger.Error("failed to read output",
				slog.String("job_id", jobID),
				slog.String("path", foundJob.OutputPath),
				slog.String("error", err.Error()),
			)
			// Don't fail the request, just log and omit the output
		} else {
			resp.VideoBase64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// CancelJob handles DELETE /jobs/{id} requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	foundJob, ok := h.findJob(r.Context(), w, jobID)
	if !ok {
		return
	}

	task := h.svc.Generator.Active()
	if foundJob.IsTerminal() || task == nil || task.ID() != jobID {
		writeError(w, http.StatusConflict, "job is not running", "JOB_NOT_RUNNING")
		return
	}

	task.Cancel()
	h.logger.Info("job cancellation requested", slog.String("job_id", jobID))
	w.WriteHeader(http.StatusAccepted)
}

// started writes the response to a request that started a task and watches
// the task in the background.
func (h *Handlers) started(w http.ResponseWriter, r *http.Request, task *generator.Task, err error) {
	if err != nil {
		switch {
		case errors.Is(err, generator.ErrBusy):
			writeError(w, http.StatusConflict, "another job is running", "PIPELINE_BUSY")
		case errors.Is(err, generator.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		default:
			h.logger.Error("failed to create job", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	go h.watch(task)

	status := job.StatusIdle
	if j, err := h.svc.Jobs.FindByID(r.Context(), task.ID()); err == nil {
		status = j.GetStatus()
	}

	h.logger.Info("job created",
		slog.String("job_id", task.ID()),
		slog.String("kind", string(task.Kind())),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     task.ID(),
		Kind:   string(task.Kind()),
		Status: string(status),
	})
}

// watch follows a task to completion and optionally files its output in
// the library.
func (h *Handlers) watch(task *generator.Task) {
	for p := range task.Progress() {
		h.logger.Debug("job progress",
			slog.String("job_id", task.ID()),
			slog.Float64("fraction", p.Fraction),
		)
	}

	res, _ := task.Wait(context.Background())
	if !res.OK() || !h.keepResults || task.Kind() == job.KindAudio {
		return
	}
	h.svc.Library.Append(library.NewVideo(res.Path))
}

// decode reads and validates a JSON request body. It writes the error
// response and returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	// An empty body selects every default.
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
			return false
		}
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	// Validate request
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) readOutput(ctx context.Context, path string) ([]byte, error) {
	rc, err := h.svc.Outputs.LoadTemp(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (h *Handlers) findItem(w http.ResponseWriter, id string) (library.Item, bool) {
	item, err := h.svc.Library.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found", "ITEM_NOT_FOUND")
		return library.Item{}, false
	}
	return item, true
}

func (h *Handlers) findJob(ctx context.Context, w http.ResponseWriter, id string) (*job.Job, bool) {
	found, err := h.svc.Jobs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return found, true
}

// selectItems returns the items named by ids, or every item of kind when
// ids is empty.
func (h *Handlers) selectItems(w http.ResponseWriter, ids []string, kind library.Kind) ([]library.Item, bool) {
	if len(ids) == 0 {
		if kind == library.KindPhoto {
			return h.svc.Library.Photos(), true
		}
		return h.svc.Library.Videos(), true
	}

	items := make([]library.Item, 0, len(ids))
	for _, id := range ids {
		item, ok := h.findItem(w, id)
		if !ok {
			return nil, false
		}
		if item.Kind != kind {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("item %s is not a %s", id, kind), "VALIDATION_ERROR")
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

// resolveSource returns the video file a request points at.
func (h *Handlers) resolveSource(w http.ResponseWriter, r *http.Request, src SourceRequest) (string, bool) {
	if src.ItemID != "" {
		item, ok := h.findItem(w, src.ItemID)
		if !ok {
			return "", false
		}
		if item.Kind != library.KindVideo {
			writeError(w, http.StatusBadRequest, "item is not a video", "VALIDATION_ERROR")
			return "", false
		}
		return item.VideoPath, true
	}

	found, ok := h.findJob(r.Context(), w, src.JobID)
	if !ok {
		return "", false
	}
	if found.Status != job.StatusSucceeded || found.OutputPath == "" || found.Kind == job.KindAudio {
		writeError(w, http.StatusBadRequest, "job has no video output", "VALIDATION_ERROR")
		return "", false
	}
	return found.OutputPath, true
}

func toItemResponse(it library.Item) ItemResponse {
	resp := ItemResponse{ID: it.ID, Kind: string(it.Kind)}
	switch it.Kind {
	case library.KindPhoto:
		b := it.Photo.Bounds()
		resp.Width, resp.Height = b.Dx(), b.Dy()
	case library.KindVideo:
		resp.Filename = filepath.Base(it.VideoPath)
	}
	return resp
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Kind:      string(j.Kind),
		Status:    string(j.Status),
		Progress:  j.Progress,
		Error:     j.Error,
		VideoURL:  j.VideoURL,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
