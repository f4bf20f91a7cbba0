package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// Schema is the videos table definition. The row is normally created by an
// external producer; this exists for development and test databases.
const Schema = `
CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'processing',
	input_files   JSONB NOT NULL DEFAULT '[]',
	output_url    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS videos_status_idx ON videos (status, created_at);
`

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool to Postgres and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the videos table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const jobColumns = `id, user_id, status, input_files, output_url, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Status,
		&j.InputFiles,
		&j.OutputURL,
		&j.ErrorMessage,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

// FindByID retrieves a job by its ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM videos WHERE id = $1`, id)
	return scanJob(row)
}

// CreateIfAbsent inserts the job row in processing state if missing.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, job *Job) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO videos (id, user_id, status, input_files)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		job.ID, job.UserID, StatusProcessing, job.InputFiles)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// Claim conditionally transitions the row to in_progress. The update is
// guarded on the current status so two executions can never both win.
func (r *PostgresRepository) Claim(ctx context.Context, id string) (*Job, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE videos
		 SET status = $2, updated_at = now()
		 WHERE id = $1 AND status <> $2
		 RETURNING `+jobColumns,
		id, StatusInProgress)

	j, err := scanJob(row)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return nil, err
	}

	// No row matched: either the id is unknown or the row is held by a
	// running execution. Distinguish the two for the caller.
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrAlreadyClaimed
}

// ClaimNextProcessing atomically claims the oldest processing row.
// SKIP LOCKED keeps concurrent pollers from contending on the same row.
func (r *PostgresRepository) ClaimNextProcessing(ctx context.Context) (*Job, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE videos
		 SET status = $1, updated_at = now()
		 WHERE id = (
		 	SELECT id FROM videos
		 	WHERE status = $2
		 	ORDER BY created_at
		 	FOR UPDATE SKIP LOCKED
		 	LIMIT 1
		 )
		 RETURNING `+jobColumns,
		StatusInProgress, StatusProcessing)

	j, err := scanJob(row)
	if errors.Is(err, ErrJobNotFound) {
		return nil, ErrNoEligibleJob
	}
	return j, err
}

// MarkDone records terminal success with the published output URL.
func (r *PostgresRepository) MarkDone(ctx context.Context, id, outputURL string) error {
	return r.markTerminal(ctx, id, StatusDone, outputURL, "")
}

// MarkFailed records terminal failure with a human-readable message.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return r.markTerminal(ctx, id, StatusFailed, "", errorMessage)
}

func (r *PostgresRepository) markTerminal(ctx context.Context, id string, status Status, outputURL, errorMessage string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE videos
		 SET status = $2, output_url = $3, error_message = $4, updated_at = $5
		 WHERE id = $1`,
		id, status, outputURL, errorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
