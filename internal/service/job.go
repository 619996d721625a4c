package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/errors"
	"github.com/surfaceops/surface-api/internal/observability/metrics"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Jobs      core.JobRepository        // Required: job repository
	Histories core.JobHistoryRepository // Required: history repository
	ErrorLogs core.ErrorLogRepository   // Optional: diagnostics for job detail views
	// Workflows maps workflow names to their capability chains, used to
	// expand template-based triggers.
	Workflows map[string][]model.WorkflowStep
	Logger    *slog.Logger // Optional: structured logger
	Metrics   statsd.Sink  // Optional: metrics sink
}

// JobService provides operator-facing job and history operations: triggering
// workflows, lifecycle transitions, and drill-in views.
type JobService struct {
	jobs      core.JobRepository
	histories core.JobHistoryRepository
	errorLogs core.ErrorLogRepository
	workflows map[string][]model.WorkflowStep
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Jobs == nil {
		return nil, stderrors.New("JobRepository is required")
	}
	if opts.Histories == nil {
		return nil, stderrors.New("JobHistoryRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		jobs:      opts.Jobs,
		histories: opts.Histories,
		errorLogs: opts.ErrorLogs,
		workflows: opts.Workflows,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// TriggerWorkflow creates a history and its member jobs in one transaction.
// When the request names a configured workflow and gives no explicit jobs,
// only the first template step is created; later steps are chained by the
// ingestion pipeline as their predecessors complete.
func (s *JobService) TriggerWorkflow(
	ctx context.Context,
	req *model.TriggerWorkflowRequest,
) (*model.JobHistory, []*model.Job, error) {
	if req == nil {
		return nil, nil, errors.Validation("trigger request is required")
	}
	if len(req.Jobs) == 0 {
		expanded, err := s.expandTemplate(req)
		if err != nil {
			return nil, nil, err
		}
		req.Jobs = expanded
	}
	if err := req.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeValidation, err.Error())
	}

	history, jobs, err := s.jobs.CreateBatch(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("create workflow batch: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "workflow triggered",
			"history_id", history.ID,
			"workflow", history.WorkflowName,
			"jobs", len(jobs),
		)
	}
	return history, jobs, nil
}

func (s *JobService) expandTemplate(req *model.TriggerWorkflowRequest) ([]*model.CreateJobRequest, error) {
	steps, ok := s.workflows[req.WorkflowName]
	if !ok || len(steps) == 0 {
		return nil, errors.Validationf("workflow %q has no template and no jobs were given", req.WorkflowName)
	}
	if req.Target == "" {
		return nil, errors.Validation("target is required for template-based triggers")
	}
	first := steps[0]
	return []*model.CreateJobRequest{{
		Category:     first.Category,
		Command:      model.RenderTarget(first.Command, req.Target),
		SaveData:     true,
		PublishEvent: true,
	}}, nil
}

// Get returns one job with its error log entries.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, []*model.JobErrorLog, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if stderrors.Is(err, data.ErrJobNotFound) {
		return nil, nil, errors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get job: %w", err)
	}

	var logs []*model.JobErrorLog
	if s.errorLogs != nil {
		logs, err = s.errorLogs.ListByJob(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("list job error logs: %w", err)
		}
	}
	return job, logs, nil
}

// Rerun moves a failed or cancelled job back to pending.
func (s *JobService) Rerun(ctx context.Context, id string) error {
	return s.transition(ctx, id, "rerun", s.jobs.Rerun)
}

// Cancel withdraws a pending or in-progress job.
func (s *JobService) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, "cancel", s.jobs.Cancel)
}

func (s *JobService) transition(
	ctx context.Context,
	id, name string,
	fn func(context.Context, string) (bool, error),
) error {
	start := time.Now()
	ok, err := fn(ctx, id)
	if stderrors.Is(err, data.ErrJobNotFound) {
		return errors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		metrics.EmitJobTransition(s.metrics, metrics.JobTransition{
			Transition: name, Result: metrics.ResultError, Duration: time.Since(start), Err: err,
		})
		return fmt.Errorf("%s job: %w", name, err)
	}
	if !ok {
		return errors.Conflictf("job %s is not in a state that allows %s", id, name)
	}
	metrics.EmitJobTransition(s.metrics, metrics.JobTransition{
		Transition: name, Result: metrics.ResultSuccess, Duration: time.Since(start),
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "job transition", "job_id", id, "transition", name)
	}
	return nil
}

// Delete removes a job that is not currently running.
func (s *JobService) Delete(ctx context.Context, id string) error {
	err := s.jobs.Delete(ctx, id)
	switch {
	case stderrors.Is(err, data.ErrJobNotFound):
		return errors.NotFoundf("job %s not found", id)
	case stderrors.Is(err, data.ErrJobNotDeletable):
		return errors.Conflict("in-progress jobs cannot be deleted")
	case err != nil:
		return fmt.Errorf("delete job: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "job deleted", "job_id", id)
	}
	return nil
}

// Stats returns per-state job counts for one capability class.
func (s *JobService) Stats(ctx context.Context, category model.JobCategory) (*model.JobStats, error) {
	if !category.Valid() {
		return nil, errors.Validationf("invalid category %q", category)
	}
	stats, err := s.jobs.Stats(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

// ListHistories returns the paginated history list with derived statuses.
func (s *JobService) ListHistories(
	ctx context.Context,
	opts model.JobHistoryListOptions,
) ([]*model.JobHistoryWithCounts, error) {
	histories, err := s.histories.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list job histories: %w", err)
	}
	return histories, nil
}

// HistoryDetail returns one history with member jobs and aggregate status.
func (s *JobService) HistoryDetail(ctx context.Context, id string) (*model.JobHistoryDetail, error) {
	detail, err := s.histories.GetDetail(ctx, id)
	if stderrors.Is(err, data.ErrHistoryNotFound) {
		return nil, errors.NotFoundf("job history %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job history: %w", err)
	}
	return detail, nil
}
