package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/errors"
	"github.com/surfaceops/surface-api/internal/observability/metrics"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

// AssignmentServiceOptions groups dependencies for AssignmentService.
type AssignmentServiceOptions struct {
	Jobs    core.JobRepository    // Required: job repository
	Workers core.WorkerRepository // Required: worker registry
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink
}

// AssignmentService hands pending jobs to polling workers. Claims are
// strictly first-come-first-served within a capability class.
type AssignmentService struct {
	jobs    core.JobRepository
	workers core.WorkerRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewAssignmentService constructs a new AssignmentService.
func NewAssignmentService(opts AssignmentServiceOptions) (*AssignmentService, error) {
	if opts.Jobs == nil {
		return nil, stderrors.New("JobRepository is required")
	}
	if opts.Workers == nil {
		return nil, stderrors.New("WorkerRepository is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "assignment_service")
	}
	return &AssignmentService{
		jobs:    opts.Jobs,
		workers: opts.Workers,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewAssignmentService constructs a new AssignmentService and panics on error.
func MustNewAssignmentService(opts AssignmentServiceOptions) *AssignmentService {
	svc, err := NewAssignmentService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create AssignmentService: %v", err))
	}
	return svc
}

// Claim assigns the oldest pending job of the category to the worker. A poll
// doubles as a liveness signal, so last_seen_at is refreshed even when no
// work is available. Returns model.ErrNoJobsAvailable when the queue is empty.
func (s *AssignmentService) Claim(
	ctx context.Context,
	worker *model.Worker,
	category model.JobCategory,
) (*model.ClaimedJob, error) {
	if worker == nil {
		return nil, errors.Unauthorized("unknown worker token")
	}
	if !category.Valid() {
		return nil, errors.Validationf("invalid category %q", category)
	}

	now := time.Now().UTC()
	touched, err := s.workers.Touch(ctx, worker.Token, now)
	if err != nil {
		return nil, fmt.Errorf("touch worker: %w", err)
	}
	if !touched {
		// Expired by the reconciler after auth resolved the token. Claiming
		// would bind the job to a deleted worker row.
		return nil, errors.Unauthorized("unknown worker token")
	}

	start := time.Now()
	job, err := s.jobs.ClaimNext(ctx, core.ClaimParams{
		WorkerID: worker.ID,
		Category: category,
	})
	if stderrors.Is(err, model.ErrNoJobsAvailable) {
		metrics.EmitJobTransition(s.metrics, metrics.JobTransition{
			Category: string(category), Transition: "claim", Result: metrics.ResultNoop,
		})
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		metrics.EmitJobTransition(s.metrics, metrics.JobTransition{
			Category: string(category), Transition: "claim",
			Result: metrics.ResultError, Err: err,
		})
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	metrics.EmitJobTransition(s.metrics, metrics.JobTransition{
		Category: string(category), Transition: "claim",
		Result: metrics.ResultSuccess, Duration: time.Since(start),
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "job claimed",
			"job_id", job.ID,
			"worker_id", worker.ID,
			"category", category,
		)
	}
	return &model.ClaimedJob{ID: job.ID, Category: job.Category, Command: job.Command}, nil
}
