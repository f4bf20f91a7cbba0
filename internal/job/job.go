// Package job provides the Job aggregate for video concatenation work.
// It includes the Job row model with its status lifecycle, the repository
// interfaces for persistence, and the processing service that turns a job's
// input clips into a single published output.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status represents the current state of a Job row.
type Status string

const (
	// StatusProcessing indicates the job is waiting to be claimed.
	StatusProcessing Status = "processing"
	// StatusInProgress indicates the job has been claimed by exactly one
	// pipeline execution.
	StatusInProgress Status = "in_progress"
	// StatusDone indicates the job finished successfully.
	StatusDone Status = "done"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "failed"
)

// IsTerminal returns true for states no running execution will leave.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// ErrAlreadyClaimed is returned when a job is already being processed by
// another execution.
var ErrAlreadyClaimed = errors.New("job already claimed")

// ErrNoEligibleJob is returned by ClaimNextProcessing when no row is
// waiting to be claimed.
var ErrNoEligibleJob = errors.New("no eligible job")

// InputFile is a single source clip reference. Either SignedURL or URL may
// be set; SignedURL wins when both are present.
type InputFile struct {
	URL       string `json:"url,omitempty"`
	SignedURL string `json:"signed_url,omitempty"`
}

// Resolve returns the URL to download from, preferring the signed variant.
func (f InputFile) Resolve() string {
	if f.SignedURL != "" {
		return f.SignedURL
	}
	return f.URL
}

// InputFiles is the ordered list of source clips. Order determines the
// concatenation order of the output.
type InputFiles []InputFile

// URLs returns the resolved download URLs in order.
func (fs InputFiles) URLs() []string {
	urls := make([]string, len(fs))
	for i, f := range fs {
		urls[i] = f.Resolve()
	}
	return urls
}

// UnmarshalJSON accepts both the canonical object form
// [{"url": ...}, {"signed_url": ...}] and the legacy flat form
// ["http://...", ...] written by older producers.
func (fs *InputFiles) UnmarshalJSON(data []byte) error {
	var objects []InputFile
	if err := json.Unmarshal(data, &objects); err == nil {
		*fs = objects
		return nil
	}

	var flat []string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("input files: %w", err)
	}
	converted := make(InputFiles, len(flat))
	for i, u := range flat {
		converted[i] = InputFile{URL: u}
	}
	*fs = converted
	return nil
}

// Job represents one row of the videos table.
type Job struct {
	// ID is the unique identifier, assigned by the creator of the row.
	ID string
	// UserID is the owning user; output objects are namespaced under it.
	UserID string
	// Status is the current lifecycle state.
	Status Status
	// InputFiles is the ordered list of source clips.
	InputFiles InputFiles
	// OutputURL is set when the job completes successfully.
	OutputURL string
	// ErrorMessage is set when the job fails.
	ErrorMessage string
	// CreatedAt is when the row was created.
	CreatedAt time.Time
	// UpdatedAt is when the row last changed state.
	UpdatedAt time.Time
}

// Clone creates a copy of the job for safe reads across goroutines.
func (j *Job) Clone() *Job {
	files := make(InputFiles, len(j.InputFiles))
	copy(files, j.InputFiles)

	clone := *j
	clone.InputFiles = files
	return &clone
}
