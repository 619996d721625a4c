package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/surfaceops/surface-api/config"
	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/observability/metrics"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

// ReconcilerServiceOptions groups dependencies for ReconcilerService.
type ReconcilerServiceOptions struct {
	Repo    core.ReconcileRepository // Required: sweep operations
	Config  config.ReconcilerConfig  // Required: intervals and ceilings
	Logger  *slog.Logger             // Optional: structured logger
	Metrics statsd.Sink              // Optional: metrics sink
}

// ReconcilerService periodically converges queue state with worker reality:
// expiring silent workers, releasing their jobs, and recycling failed jobs
// below the retry ceiling. Every sweep step is idempotent, so overlapping
// instances only waste work.
type ReconcilerService struct {
	repo    core.ReconcileRepository
	config  config.ReconcilerConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReconcilerService constructs a new ReconcilerService.
func NewReconcilerService(opts ReconcilerServiceOptions) (*ReconcilerService, error) {
	if opts.Repo == nil {
		return nil, stderrors.New("ReconcileRepository is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, stderrors.New("reconciler interval must be positive")
	}
	if opts.Config.WorkerTTL <= 0 {
		return nil, stderrors.New("worker TTL must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reconciler_service")
		logger.Debug("ReconcilerService initialized",
			"interval", opts.Config.Interval,
			"worker_ttl", opts.Config.WorkerTTL,
			"max_recycles", opts.Config.MaxRecycles,
		)
	}

	return &ReconcilerService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewReconcilerService constructs a new ReconcilerService and panics on error.
func MustNewReconcilerService(opts ReconcilerServiceOptions) *ReconcilerService {
	svc, err := NewReconcilerService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ReconcilerService: %v", err))
	}
	return svc
}

// Run starts the sweep loop and blocks until the context is cancelled.
// Returns nil on graceful shutdown.
func (s *ReconcilerService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reconciler", "interval", s.config.Interval)
	}

	// Jitter the first sweep so multiple instances starting together do not
	// contend for the advisory locks at the same instant.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reconciler stopping", "reason", ctx.Err())
			}
			if stderrors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// waitWithJitter sleeps a random duration up to 10% of the interval.
func (s *ReconcilerService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type sweepStep struct {
	name string
	fn   func(context.Context) (int64, error)
}

// sweep runs all steps once. A failed step is logged and does not stop the
// remaining steps.
func (s *ReconcilerService) sweep(ctx context.Context) {
	steps := []sweepStep{
		{name: "expire_workers", fn: s.expireStaleWorkers},
		{name: "release_orphans", fn: s.releaseOrphanedJobs},
		{name: "recycle_failed", fn: s.recycleFailedJobs},
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			return
		}
		affected, err := step.fn(ctx)
		metrics.EmitReconcile(s.metrics, step.name, affected, err)
		if err != nil {
			if stderrors.Is(err, context.Canceled) {
				return
			}
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "reconcile step failed", "step", step.name, "error", err)
			}
			continue
		}
		if affected > 0 && s.logger != nil {
			s.logger.InfoContext(ctx, "reconcile step applied", "step", step.name, "affected", affected)
		}
	}
}

// expireStaleWorkers removes workers silent past the TTL and returns their
// in-progress jobs to pending. Both counts matter; the job count is the one
// reported, the worker count goes to the log.
func (s *ReconcilerService) expireStaleWorkers(ctx context.Context) (int64, error) {
	deadline := time.Now().UTC().Add(-s.config.WorkerTTL)
	workers, jobs, err := s.repo.ExpireStaleWorkers(ctx, deadline)
	if err != nil {
		return jobs, err
	}
	if workers > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "expired stale workers",
			"workers", workers,
			"jobs_released", jobs,
		)
	}
	return jobs, nil
}

func (s *ReconcilerService) releaseOrphanedJobs(ctx context.Context) (int64, error) {
	return s.repo.ReleaseOrphanedJobs(ctx)
}

func (s *ReconcilerService) recycleFailedJobs(ctx context.Context) (int64, error) {
	return s.repo.RecycleFailedJobs(ctx, s.config.MaxRecycles)
}
