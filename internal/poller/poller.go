// Package poller runs the timer-driven job discovery loop.
// Each tick claims at most one eligible job and runs the concatenation
// pipeline against it; the claim is atomic so overlapping pollers never
// process the same row twice.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vidstitch/vidstitch-api/internal/job"
)

// Poller periodically claims and processes one eligible job.
type Poller struct {
	repo     job.Repository
	service  *job.ProcessVideoService
	logger   *slog.Logger
	interval time.Duration
}

// New creates a Poller with the given tick interval.
func New(repo job.Repository, service *job.ProcessVideoService, logger *slog.Logger, interval time.Duration) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		repo:     repo,
		service:  service,
		logger:   logger,
		interval: interval,
	}
}

// Run starts the poll loop and blocks until the context is cancelled.
// Ticks that fire while a job is being processed are absorbed by the ticker.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started",
		slog.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick claims and processes at most one job.
func (p *Poller) tick(ctx context.Context) {
	p.logger.Debug("checking for video jobs")

	claimed, err := p.repo.ClaimNextProcessing(ctx)
	if err != nil {
		if errors.Is(err, job.ErrNoEligibleJob) {
			p.logger.Debug("no jobs found")
			return
		}
		p.logger.Error("failed to claim job",
			slog.String("error", err.Error()),
		)
		return
	}

	if _, err := p.service.ProcessClaimed(ctx, claimed); err != nil {
		// The service already recorded the failure on the row.
		p.logger.Error("job processing failed",
			slog.String("job_id", claimed.ID),
			slog.String("error", err.Error()),
		)
	}
}
