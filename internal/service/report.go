package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/errors"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

// ReportServiceOptions groups dependencies for ReportService.
type ReportServiceOptions struct {
	Jobs    core.JobRepository // Required: job repository
	Queue   core.ResultQueue   // Required: ingest queue
	Logger  *slog.Logger       // Optional: structured logger
	Metrics statsd.Sink        // Optional: metrics sink
}

// ReportService accepts result reports from workers and hands them to the
// asynchronous ingestion pipeline. Accepting a report acknowledges receipt,
// not processing.
type ReportService struct {
	jobs    core.JobRepository
	queue   core.ResultQueue
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReportService constructs a new ReportService.
func NewReportService(opts ReportServiceOptions) (*ReportService, error) {
	if opts.Jobs == nil {
		return nil, stderrors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, stderrors.New("ResultQueue is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "report_service")
	}
	return &ReportService{
		jobs:    opts.Jobs,
		queue:   opts.Queue,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewReportService constructs a new ReportService and panics on error.
func MustNewReportService(opts ReportServiceOptions) *ReportService {
	svc, err := NewReportService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ReportService: %v", err))
	}
	return svc
}

// Accept validates ownership and state, then enqueues the report. A job a
// worker does not own reads as not found, never as forbidden, so tokens
// cannot be used to probe for job IDs.
func (s *ReportService) Accept(
	ctx context.Context,
	worker *model.Worker,
	jobID, resultRef string,
) error {
	if worker == nil {
		return errors.Unauthorized("unknown worker token")
	}
	if _, err := model.ParseResultRef(resultRef); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid result_ref")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if stderrors.Is(err, data.ErrJobNotFound) {
		return errors.NotFoundf("job %s not found", jobID)
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job.WorkerID == nil || *job.WorkerID != worker.ID {
		return errors.NotFoundf("job %s not found", jobID)
	}
	if job.Status != model.JobStatusInProgress {
		return errors.Conflictf("job %s is not in progress", jobID)
	}

	msg := core.ResultMessage{
		JobID:     job.ID,
		WorkerID:  worker.ID,
		ResultRef: resultRef,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Count("report.accepted", 1, map[string]string{"category": string(job.Category)})
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "result report accepted",
			"job_id", job.ID,
			"worker_id", worker.ID,
		)
	}
	return nil
}
