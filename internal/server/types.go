// Package server provides the HTTP server for the vidstitch API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// FileRef is one source clip reference in a process request.
// Either a ready-to-use signed URL or a generic URL must be set.
type FileRef struct {
	// SignedURL is a ready-to-use signed download URL.
	SignedURL string `json:"signedUrl,omitempty"`
	// URL is a generic download URL.
	URL string `json:"url,omitempty" validate:"required_without=SignedURL"`
}

// ProcessRequest is the HTTP request body for POST /api/process.
type ProcessRequest struct {
	// JobID is the identifier of the job row, assigned by the caller.
	JobID string `json:"job_id" validate:"required"`
	// UserID is the owning user.
	UserID string `json:"user_id" validate:"required"`
	// Files is the ordered list of source clips to concatenate.
	Files []FileRef `json:"files" validate:"required,min=1,dive"`
	// Options carries processing options; accepted but not interpreted.
	Options map[string]any `json:"options,omitempty"`
}

// ProcessResponse is the HTTP response for a successful process request.
type ProcessResponse struct {
	// JobID is the identifier of the processed job.
	JobID string `json:"job_id"`
	// Status is the terminal job status.
	Status string `json:"status"`
	// OutputURL is the retrievable URL of the concatenated output.
	OutputURL string `json:"outputUrl"`
}

// StatusResponse is the HTTP response for GET /api/status/{job_id}.
type StatusResponse struct {
	// ID is the job identifier.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// OutputURL is set when the job completed successfully.
	OutputURL string `json:"output_url,omitempty"`
	// ErrorMessage is set when the job failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// UpdatedAt is the timestamp of the last status transition.
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
