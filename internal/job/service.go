package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/vidstitch/vidstitch-api/internal/download"
	"github.com/vidstitch/vidstitch-api/internal/media"
	"github.com/vidstitch/vidstitch-api/internal/storage"
	"github.com/vidstitch/vidstitch-api/internal/workspace"
)

// outputContentType is the content type of every produced output.
const outputContentType = "video/mp4"

// ProcessJobInput contains the input parameters for an intake-driven run.
type ProcessJobInput struct {
	// JobID is the identifier of the job row, assigned by the creator.
	JobID string
	// UserID is the owning user; the output object is namespaced under it.
	UserID string
	// Files is the ordered list of source clips.
	Files InputFiles
	// Options carries processing options. Accepted for forward
	// compatibility; no option is currently interpreted.
	Options map[string]any
}

// ProcessJobOutput contains the result of a successful run.
type ProcessJobOutput struct {
	// JobID is the identifier of the processed job.
	JobID string
	// Status is the terminal job status.
	Status Status
	// OutputURL is the retrievable URL of the concatenated output.
	OutputURL string
}

// ProcessVideoService orchestrates the concatenation pipeline: claim the
// row, download the clips, concatenate with ffmpeg, upload the output,
// record the terminal state.
type ProcessVideoService struct {
	repo       Repository
	fetcher    download.Fetcher
	transcoder media.Transcoder
	store      storage.Storage
	logger     *slog.Logger
	tempDir    string
}

// ServiceOption is a function that configures a ProcessVideoService.
type ServiceOption func(*ProcessVideoService)

// WithTempDir sets the base directory for job workspaces.
func WithTempDir(dir string) ServiceOption {
	return func(s *ProcessVideoService) {
		s.tempDir = dir
	}
}

// NewProcessVideoService creates a new ProcessVideoService.
func NewProcessVideoService(
	repo Repository,
	fetcher download.Fetcher,
	transcoder media.Transcoder,
	store storage.Storage,
	logger *slog.Logger,
	opts ...ServiceOption,
) *ProcessVideoService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProcessVideoService{
		repo:       repo,
		fetcher:    fetcher,
		transcoder: transcoder,
		store:      store,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetJob retrieves a job by ID.
func (s *ProcessVideoService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ProcessRequest runs the pipeline for an intake request. The row is created
// when missing and claimed before any side effect; ErrAlreadyClaimed is
// returned when another execution holds the job.
func (s *ProcessVideoService) ProcessRequest(ctx context.Context, input ProcessJobInput) (*ProcessJobOutput, error) {
	seed := &Job{
		ID:         input.JobID,
		UserID:     input.UserID,
		InputFiles: input.Files,
	}
	if err := s.repo.CreateIfAbsent(ctx, seed); err != nil {
		return nil, fmt.Errorf("create job row: %w", err)
	}

	claimed, err := s.repo.Claim(ctx, input.JobID)
	if err != nil {
		return nil, err
	}

	// The request is authoritative for the intake path; the row may hold
	// stale inputs from a prior run.
	claimed.UserID = input.UserID
	claimed.InputFiles = input.Files

	return s.runClaimed(ctx, claimed)
}

// ProcessClaimed runs the pipeline for a job the caller has already claimed,
// using the row's own input list. This is the poller path.
func (s *ProcessVideoService) ProcessClaimed(ctx context.Context, j *Job) (*ProcessJobOutput, error) {
	return s.runClaimed(ctx, j)
}

// runClaimed executes the pipeline and records the terminal state.
// On failure the row is best-effort marked failed; a failing status update
// is only logged.
func (s *ProcessVideoService) runClaimed(ctx context.Context, j *Job) (*ProcessJobOutput, error) {
	s.logger.Info("processing job",
		slog.String("job_id", j.ID),
		slog.String("user_id", j.UserID),
		slog.Int("files", len(j.InputFiles)),
	)

	outputURL, err := s.execute(ctx, j)
	if err != nil {
		s.markFailed(ctx, j.ID, err)
		return nil, err
	}

	if err := s.repo.MarkDone(ctx, j.ID, outputURL); err != nil {
		// The object is uploaded but the row update failed; the stores
		// are now inconsistent and need manual reconciliation.
		s.logger.Error("failed to record job success",
			slog.String("job_id", j.ID),
			slog.String("output_url", outputURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("record job success: %w", err)
	}

	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.String("output_url", outputURL),
	)

	return &ProcessJobOutput{
		JobID:     j.ID,
		Status:    StatusDone,
		OutputURL: outputURL,
	}, nil
}

// execute runs the pipeline steps: workspace, downloads, concat, upload, URL.
func (s *ProcessVideoService) execute(ctx context.Context, j *Job) (string, error) {
	if len(j.InputFiles) == 0 {
		return "", download.ErrNoURLs
	}

	ws, err := workspace.New(s.tempDir, j.ID)
	if err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			s.logger.Warn("failed to remove workspace",
				slog.String("job_id", j.ID),
				slog.String("dir", ws.Dir()),
				slog.String("error", err.Error()),
			)
		}
	}()

	urls := j.InputFiles.URLs()
	dests := make([]string, len(urls))
	for i := range urls {
		dests[i] = ws.ClipPath(i)
	}

	if err := s.fetcher.FetchAll(ctx, urls, dests); err != nil {
		return "", err
	}

	if err := s.transcoder.Concat(ctx, dests, ws.ManifestPath(), ws.OutputPath()); err != nil {
		return "", err
	}

	out, err := os.Open(ws.OutputPath())
	if err != nil {
		return "", fmt.Errorf("open output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	key := storage.OutputKey(j.UserID, j.ID)
	if err := s.store.Upload(ctx, key, out, outputContentType); err != nil {
		return "", err
	}

	outputURL, err := s.store.ObjectURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve output URL: %w", err)
	}

	return outputURL, nil
}

// markFailed best-effort records the failure on the job row.
func (s *ProcessVideoService) markFailed(ctx context.Context, id string, cause error) {
	s.logger.Error("job failed",
		slog.String("job_id", id),
		slog.String("error", cause.Error()),
	)
	if err := s.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Error("failed to record job failure",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
}
