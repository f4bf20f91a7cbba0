// Package bootstrap provides dependency initialization for the vidstitch binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidstitch/vidstitch-api/internal/config"
	"github.com/vidstitch/vidstitch-api/internal/download"
	"github.com/vidstitch/vidstitch-api/internal/job"
	"github.com/vidstitch/vidstitch-api/internal/media"
	"github.com/vidstitch/vidstitch-api/internal/storage"
)

// Dependencies holds all initialized dependencies shared by the server and
// worker binaries.
type Dependencies struct {
	Repository   job.Repository
	VideoService *job.ProcessVideoService

	closeFn func()
}

// Close releases held resources such as the database pool.
func (d *Dependencies) Close() {
	if d.closeFn != nil {
		d.closeFn()
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	pool, err := job.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect job table: %w", err)
	}
	repo := job.NewPostgresRepository(pool)
	logger.Info("job table connected",
		slog.Int("max_conns", cfg.MaxDBConns),
	)

	store, err := initStorage(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	fetcher := download.NewHTTPFetcher(
		download.WithMaxConcurrent(cfg.MaxConcurrentDownloads),
		download.WithHTTPClient(download.NewClient(cfg.DownloadTimeout)),
	)

	transcoder := media.NewFFmpegTranscoder(cfg.FFmpegPath,
		media.WithStreamCopy(cfg.FFmpegStreamCopy),
		media.WithTimeout(cfg.TranscodeTimeout),
	)

	svc := job.NewProcessVideoService(
		repo,
		fetcher,
		transcoder,
		store,
		logger,
		job.WithTempDir(cfg.TempDir),
	)

	return &Dependencies{
		Repository:   repo,
		VideoService: svc,
		closeFn:      pool.Close,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Bucket:          cfg.OutputBucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PublicURLs:      cfg.PublicURLs,
			SignedURLTTL:    cfg.SignedURLTTL,
			MaxRetries:      3,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.OutputBucket),
			slog.String("region", cfg.S3Region),
			slog.Bool("public_urls", cfg.PublicURLs),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage("")
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("root_dir", localStore.RootDir()),
	)
	return localStore, nil
}
