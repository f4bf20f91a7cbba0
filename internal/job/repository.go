package job

import "context"

// Repository defines the interface for job row persistence.
// It acts as a port in the hexagonal architecture pattern; the production
// implementation is backed by Postgres, tests use the in-memory variant.
type Repository interface {
	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// CreateIfAbsent inserts the job row in processing state if no row
	// with its ID exists yet. An existing row is left untouched.
	CreateIfAbsent(ctx context.Context, job *Job) error

	// Claim conditionally transitions the row to in_progress so that at
	// most one execution processes it. Claiming succeeds from processing
	// and from terminal states (a re-run); it fails with
	// ErrAlreadyClaimed when the row is in_progress, and with
	// ErrJobNotFound when the row does not exist.
	Claim(ctx context.Context, id string) (*Job, error)

	// ClaimNextProcessing atomically claims the oldest row in processing
	// state and returns it. Returns ErrNoEligibleJob when nothing is
	// waiting.
	ClaimNextProcessing(ctx context.Context) (*Job, error)

	// MarkDone records terminal success with the published output URL.
	MarkDone(ctx context.Context, id, outputURL string) error

	// MarkFailed records terminal failure with a human-readable message.
	MarkFailed(ctx context.Context, id, errorMessage string) error
}
