// Package server provides the HTTP API of the media pipeline.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// AddPhotoRequest is the HTTP request body for importing a photo.
type AddPhotoRequest struct {
	// ImageBase64 is the base64-encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP).
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
}

// AddVideoRequest is the HTTP request body for importing a video.
type AddVideoRequest struct {
	// VideoBase64 is the base64-encoded video file.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// Filename names the stored file.
	Filename string `json:"filename" validate:"required,max=255"`
}

// ItemResponse describes a media item.
type ItemResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	// Width and Height are set for photos.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Filename is set for videos.
	Filename string `json:"filename,omitempty"`
}

// ListItemsResponse is the HTTP response for listing the library.
type ListItemsResponse struct {
	Items []ItemResponse `json:"items"`
	Count int            `json:"count"`
}

// ItemInfoResponse describes the streams and orientation of a video item,
// or the size of a photo item.
type ItemInfoResponse struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	DisplayWidth  int     `json:"display_width,omitempty"`
	DisplayHeight int     `json:"display_height,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
	HasAudio      bool    `json:"has_audio"`
	Orientation   string  `json:"orientation,omitempty"`
	Device        string  `json:"device,omitempty"`
}

// CreateSlideshowRequest is the HTTP request body for a slideshow.
type CreateSlideshowRequest struct {
	// ItemIDs selects photos in order. Empty means every photo in the
	// library, in insertion order.
	ItemIDs []string `json:"item_ids" validate:"omitempty,dive,required"`
}

// CreateMergeRequest is the HTTP request body for merging videos.
type CreateMergeRequest struct {
	// ItemIDs selects videos in order. Empty means every video in the
	// library, in insertion order.
	ItemIDs []string `json:"item_ids" validate:"omitempty,dive,required"`
	// Animated adds transitions between adjacent clips.
	Animated bool `json:"animated"`
}

// SourceRequest names the video an operation works on: a library item or
// the output of a finished job.
type SourceRequest struct {
	ItemID string `json:"item_id" validate:"required_without=JobID,excluded_with=JobID"`
	JobID  string `json:"job_id" validate:"required_without=ItemID,excluded_with=ItemID"`
}

// CreateFilterRequest is the HTTP request body for filtering a video.
type CreateFilterRequest struct {
	SourceRequest
	// Filter is a filter name. Empty means the configured default.
	Filter string `json:"filter" validate:"omitempty,max=64"`
}

// CreateTitleRequest is the HTTP request body for captioning a video.
type CreateTitleRequest struct {
	SourceRequest
	// Text is the caption. Empty means the configured default.
	Text string `json:"text" validate:"omitempty,max=200"`
}

// CreateAudioRequest is the HTTP request body for extracting audio.
type CreateAudioRequest struct {
	SourceRequest
}

// CreateJobResponse is the HTTP response after starting a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Kind is the operation the job runs.
	Kind string `json:"kind"`
	// Status is the job status when the response was written.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Kind is the operation the job runs.
	Kind string `json:"kind"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// VideoBase64 is the base64-encoded output (if not published and succeeded).
	VideoBase64 string `json:"video_base64,omitempty"`
	// VideoURL is the published URL of the output (if published and succeeded).
	VideoURL  string    `json:"video_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListJobsResponse is the HTTP response for listing jobs. Outputs are not
// inlined.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Busy reports whether a job is running.
	Busy bool `json:"busy"`
}
