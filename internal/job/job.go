// Package job records generation runs. Every pipeline invocation gets a Job
// that tracks its state, progress and output, so results are owned by the
// run that produced them rather than by shared mutable state.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/photoreel/internal/job/id"
)

// Kind identifies the pipeline operation a run executes.
type Kind string

const (
	// KindSlideshow renders still images into a video.
	KindSlideshow Kind = "slideshow"
	// KindMerge concatenates videos.
	KindMerge Kind = "merge"
	// KindMergeAnimated concatenates videos with transitions.
	KindMergeAnimated Kind = "merge_animated"
	// KindFilter applies a visual filter to a video.
	KindFilter Kind = "filter"
	// KindTitle overlays a caption on a video.
	KindTitle Kind = "title"
	// KindAudio extracts the audio track of a video.
	KindAudio Kind = "audio"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindSlideshow, KindMerge, KindMergeAnimated, KindFilter, KindTitle, KindAudio:
		return true
	}
	return false
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusIdle indicates the run was created but has not started.
	StatusIdle Status = "IDLE"
	// StatusGenerating indicates the pipeline is working.
	StatusGenerating Status = "GENERATING"
	// StatusSucceeded indicates an output file was produced.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the run ended with an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was cancelled by the caller.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusIdle:       {StatusGenerating, StatusFailed, StatusCancelled},
	StatusGenerating: {StatusSucceeded, StatusFailed, StatusCancelled},
	StatusSucceeded:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job is the record of one generation run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// Kind is the operation being run.
	Kind Kind
	// Status is the current run state.
	Status Status
	// Inputs lists the item IDs or paths the run consumed, in order.
	Inputs []string
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains a human-readable message if the run failed.
	Error string
	// OutputPath is the path to the produced video.
	OutputPath string
	// VideoURL is the published URL, if the output was uploaded.
	VideoURL string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when generation started.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job of the given kind with a generated ID in IDLE state.
func New(kind Kind) *Job {
	return NewWithID(id.Generate("run"), kind)
}

// NewWithID creates a new Job with the specified ID in IDLE state.
func NewWithID(jobID string, kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Kind:      kind,
		Status:    StatusIdle,
		Inputs:    make([]string, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusGenerating:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded:
		j.Progress = 100
		j.CompletedAt = j.UpdatedAt
	case StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IDLE to GENERATING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusGenerating)
}

// Succeed records the output and transitions the job to SUCCEEDED.
func (j *Job) Succeed(outputPath, videoURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusSucceeded); err != nil {
		return err
	}
	j.OutputPath = outputPath
	j.VideoURL = videoURL
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetInputs records the inputs of the run.
func (j *Job) SetInputs(inputs []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Inputs = slices.Clone(inputs)
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100) and reports whether
// it changed. Progress never moves backwards.
func (j *Job) UpdateProgress(progress int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress = max(0, min(progress, 100))
	if progress <= j.Progress {
		return false
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
	return true
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusSucceeded ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Inputs:      slices.Clone(j.Inputs),
		Progress:    j.Progress,
		Error:       j.Error,
		OutputPath:  j.OutputPath,
		VideoURL:    j.VideoURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
