package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vidstitch/vidstitch-api/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.ProcessVideoService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ProcessVideoService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ProcessJob handles POST /api/process requests. It validates the request,
// runs the concatenation pipeline inline, and returns the outcome.
func (h *Handlers) ProcessJob(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Validate request before any side effect
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "job_id, user_id and files[] are required")
		return
	}

	files := make(job.InputFiles, len(req.Files))
	for i, f := range req.Files {
		files[i] = job.InputFile{URL: f.URL, SignedURL: f.SignedURL}
	}

	input := job.ProcessJobInput{
		JobID:   req.JobID,
		UserID:  req.UserID,
		Files:   files,
		Options: req.Options,
	}

	out, err := h.service.ProcessRequest(r.Context(), input)
	if err != nil {
		if errors.Is(err, job.ErrAlreadyClaimed) {
			writeError(w, http.StatusConflict, "job is already being processed")
			return
		}
		h.logger.Error("processing failed",
			slog.String("job_id", req.JobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ProcessResponse{
		JobID:     out.JobID,
		Status:    string(out.Status),
		OutputURL: out.OutputURL,
	})
}

// JobStatus handles GET /api/status/{job_id} requests.
func (h *Handlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		ID:           found.ID,
		Status:       string(found.Status),
		OutputURL:    found.OutputURL,
		ErrorMessage: found.ErrorMessage,
		UpdatedAt:    found.UpdatedAt,
	})
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
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
