package job

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgresRepo connects to the database named by TEST_DATABASE_URL,
// skipping the test when none is configured.
func newTestPostgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres tests")
	}

	pool, err := Connect(context.Background(), dsn, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewPostgresRepository(pool)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestPostgresRepository_ClaimLifecycle(t *testing.T) {
	repo := newTestPostgresRepo(t)
	ctx := context.Background()
	id := "test-" + uuid.NewString()

	require.NoError(t, repo.CreateIfAbsent(ctx, &Job{
		ID:         id,
		UserID:     "u1",
		InputFiles: InputFiles{{URL: "http://x/a.mp4"}},
	}))

	claimed, err := repo.Claim(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, claimed.Status)
	assert.Equal(t, "u1", claimed.UserID)
	require.Len(t, claimed.InputFiles, 1)
	assert.Equal(t, "http://x/a.mp4", claimed.InputFiles[0].Resolve())

	// A second claim loses.
	_, err = repo.Claim(ctx, id)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	require.NoError(t, repo.MarkDone(ctx, id, "https://signed.example/out"))

	row, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, row.Status)
	assert.Equal(t, "https://signed.example/out", row.OutputURL)

	// Terminal rows can be re-claimed for an idempotent re-run.
	_, err = repo.Claim(ctx, id)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, id, "boom"))
	row, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, row.Status)
	assert.Equal(t, "boom", row.ErrorMessage)
}

func TestPostgresRepository_ClaimUnknownID(t *testing.T) {
	repo := newTestPostgresRepo(t)

	_, err := repo.Claim(context.Background(), "test-"+uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPostgresRepository_ClaimNextProcessing(t *testing.T) {
	repo := newTestPostgresRepo(t)
	ctx := context.Background()

	older := "test-" + uuid.NewString()
	newer := "test-" + uuid.NewString()
	require.NoError(t, repo.CreateIfAbsent(ctx, &Job{ID: older}))
	require.NoError(t, repo.CreateIfAbsent(ctx, &Job{ID: newer}))

	first, err := repo.ClaimNextProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, first.Status)

	// Drain the rest so the table state does not leak between runs.
	for {
		j, err := repo.ClaimNextProcessing(ctx)
		if err != nil {
			assert.ErrorIs(t, err, ErrNoEligibleJob)
			break
		}
		require.NoError(t, repo.MarkFailed(ctx, j.ID, "drained by test"))
	}
}
