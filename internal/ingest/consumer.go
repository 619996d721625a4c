// Package ingest drains the result queue, normalizes raw tool output, and
// finalizes jobs. It is the only writer of completed and failed states and
// the only component that deletes result blobs.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surfaceops/surface-api/internal/blob"
	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/observability/metrics"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

const (
	defaultConcurrency   = 4
	defaultPollInterval  = time.Second
	defaultMaxAttempts   = 5
	defaultRetryBackoff  = 5 * time.Second
	defaultSweepInterval = 30 * time.Second
	maxBackoff           = 5 * time.Minute

	// failure messages are truncated so a chatty tool cannot bloat the
	// error log table
	maxFailureMessage = 4 * 1024
)

// ConsumerOptions configures the ingestion pipeline.
type ConsumerOptions struct {
	Queue     core.ResultQueue
	Blobs     core.BlobStore
	Jobs      core.JobRepository
	Histories core.JobHistoryRepository
	Sync      core.DataSync
	Parsers   *ParserRegistry
	Workflows map[string][]model.WorkflowStep

	Concurrency   int
	PollInterval  time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	SweepInterval time.Duration

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Consumer runs a pool of goroutines over the result queue plus one janitor
// that reclaims lapsed leases.
type Consumer struct {
	queue     core.ResultQueue
	blobs     core.BlobStore
	jobs      core.JobRepository
	histories core.JobHistoryRepository
	sync      core.DataSync
	parsers   *ParserRegistry
	workflows map[string][]model.WorkflowStep

	concurrency   int
	pollInterval  time.Duration
	maxAttempts   int
	retryBackoff  time.Duration
	sweepInterval time.Duration

	logger  *slog.Logger
	metrics statsd.Sink
}

// NewConsumer validates dependencies and constructs a Consumer.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.Queue == nil {
		return nil, errors.New("result queue is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Histories == nil {
		return nil, errors.New("job history repository is required")
	}

	c := &Consumer{
		queue:         opts.Queue,
		blobs:         opts.Blobs,
		jobs:          opts.Jobs,
		histories:     opts.Histories,
		sync:          opts.Sync,
		parsers:       opts.Parsers,
		workflows:     opts.Workflows,
		concurrency:   opts.Concurrency,
		pollInterval:  opts.PollInterval,
		maxAttempts:   opts.MaxAttempts,
		retryBackoff:  opts.RetryBackoff,
		sweepInterval: opts.SweepInterval,
		metrics:       opts.Metrics,
	}
	if c.sync == nil {
		c.sync = datasyncNoop{}
	}
	if c.parsers == nil {
		c.parsers = NewParserRegistry()
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = defaultRetryBackoff
	}
	if c.sweepInterval <= 0 {
		c.sweepInterval = defaultSweepInterval
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.With("component", "ingest_consumer")
	}
	return c, nil
}

// MustNewConsumer constructs a Consumer and panics on error. Use at startup
// for fail-fast wiring.
func MustNewConsumer(opts ConsumerOptions) *Consumer {
	c, err := NewConsumer(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// datasyncNoop keeps the save_data path callable when no console integration
// is configured.
type datasyncNoop struct{}

func (datasyncNoop) Apply(context.Context, model.JobContext, *model.ParsedResult) error {
	return nil
}

// Run blocks until the context is cancelled or a consumer loop fails.
func (c *Consumer) Run(ctx context.Context) error {
	if c.logger != nil {
		c.logger.InfoContext(ctx, "starting ingest consumer",
			"concurrency", c.concurrency,
			"max_attempts", c.maxAttempts,
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	for range c.concurrency {
		g.Go(func() error { return c.consumeLoop(ctx) })
	}
	g.Go(func() error { return c.sweepLoop(ctx) })
	return g.Wait()
}

func (c *Consumer) consumeLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := c.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if c.logger != nil {
				c.logger.ErrorContext(ctx, "dequeue failed", "error", err)
			}
			c.idle(ctx)
			continue
		}
		if msg == nil {
			c.idle(ctx)
			continue
		}
		c.process(ctx, msg)
	}
	return nil
}

func (c *Consumer) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.pollInterval):
	}
}

func (c *Consumer) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			moved, err := c.queue.RequeueExpired(ctx, time.Now())
			if err != nil && c.logger != nil {
				c.logger.ErrorContext(ctx, "requeue expired failed", "error", err)
			}
			if moved > 0 && c.logger != nil {
				c.logger.InfoContext(ctx, "reclaimed lapsed ingest leases", "count", moved)
			}
		}
	}
}

// process runs one message through the pipeline. Every exit path settles the
// message: ack, retry, or dead-letter.
func (c *Consumer) process(ctx context.Context, msg *core.ResultMessage) {
	start := time.Now()
	category := ""
	outcome := func(name string) {
		metrics.EmitIngest(c.metrics, category, name, msg.Attempt, time.Since(start))
	}

	job, err := c.jobs.GetByID(ctx, msg.JobID)
	if errors.Is(err, data.ErrJobNotFound) {
		// Job deleted while the report was queued. Nothing to finalize.
		c.settle(ctx, msg, msg.ResultRef)
		outcome("job_gone")
		return
	}
	if err != nil {
		c.retryOrDeadLetter(ctx, msg, fmt.Errorf("load job: %w", err))
		outcome("retry")
		return
	}
	category = string(job.Category)

	// Cancel wins: a report for a job that is no longer in progress, or that
	// is owned by a different worker, is discarded silently.
	if job.Status != model.JobStatusInProgress || job.WorkerID == nil || *job.WorkerID != msg.WorkerID {
		c.settle(ctx, msg, msg.ResultRef)
		outcome("stale")
		return
	}

	ref, err := model.ParseResultRef(msg.ResultRef)
	if err != nil {
		c.failContract(ctx, msg, job, "", err)
		outcome("contract_error")
		return
	}

	raw, err := c.blobs.Read(ctx, ref)
	if errors.Is(err, blob.ErrBlobNotFound) {
		c.failContract(ctx, msg, job, "", fmt.Errorf("result blob missing: %w", err))
		outcome("contract_error")
		return
	}
	if err != nil {
		c.retryOrDeadLetter(ctx, msg, fmt.Errorf("read blob: %w", err))
		outcome("retry")
		return
	}

	var envelope model.ResultEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.failContract(ctx, msg, job, msg.ResultRef, fmt.Errorf("malformed result envelope: %w", err))
		outcome("contract_error")
		return
	}
	if envelope.Error {
		c.failJob(ctx, job.ID, model.ErrorKindTool, truncate(envelope.Raw, maxFailureMessage), nil)
		c.settle(ctx, msg, msg.ResultRef)
		outcome("tool_error")
		return
	}

	parser, err := c.parsers.Lookup(job.Category)
	if err != nil {
		c.failContract(ctx, msg, job, msg.ResultRef, err)
		outcome("contract_error")
		return
	}
	parsed, err := parser.Parse(envelope.Raw)
	if err != nil {
		c.failContract(ctx, msg, job, msg.ResultRef, fmt.Errorf("parse %s output: %w", job.Category, err))
		outcome("contract_error")
		return
	}

	if job.SaveData && !parsed.Empty() {
		jobCtx := model.JobContext{
			JobID:     job.ID,
			HistoryID: job.HistoryID,
			Category:  job.Category,
			AssetID:   job.AssetID,
			TargetID:  job.TargetID,
		}
		if err := c.sync.Apply(ctx, jobCtx, parsed); err != nil {
			c.retryOrDeadLetter(ctx, msg, fmt.Errorf("apply data sync: %w", err))
			outcome("retry")
			return
		}
	}

	completed, err := c.jobs.Complete(ctx, core.CompleteParams{
		JobID:       job.ID,
		RawResult:   raw,
		SaveRaw:     job.SaveRawResult,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		c.retryOrDeadLetter(ctx, msg, fmt.Errorf("complete job: %w", err))
		outcome("retry")
		return
	}
	if !completed {
		// Cancelled between our status check and the completion update.
		c.settle(ctx, msg, msg.ResultRef)
		outcome("stale")
		return
	}

	c.chainNext(ctx, job)
	c.settle(ctx, msg, msg.ResultRef)
	if c.logger != nil {
		c.logger.InfoContext(ctx, "job completed",
			"job_id", job.ID,
			"category", job.Category,
			"assets", len(parsed.Assets),
			"findings", len(parsed.Findings),
		)
	}
	outcome("success")
}

// chainNext creates the successor workflow step, if the history's workflow
// declares one and no sibling of that category exists yet. Chaining failures
// never fail the completed job; the operator can trigger the step manually.
func (c *Consumer) chainNext(ctx context.Context, job *model.Job) {
	detail, err := c.histories.GetDetail(ctx, job.HistoryID)
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "chain lookup failed", "history_id", job.HistoryID, "error", err)
		}
		return
	}
	next := model.NextStep(c.workflows, detail.WorkflowName, job.Category)
	if next == nil {
		return
	}
	for _, sibling := range detail.Jobs {
		if sibling.Category == next.Category {
			return
		}
	}

	req := &model.CreateJobRequest{
		Category:      next.Category,
		Command:       model.RenderCommand(next.Command, job),
		Priority:      job.Priority,
		AssetID:       job.AssetID,
		TargetID:      job.TargetID,
		SaveRawResult: job.SaveRawResult,
		SaveData:      job.SaveData,
		PublishEvent:  job.PublishEvent,
	}
	created, err := c.jobs.CreateInHistory(ctx, job.HistoryID, req)
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "chain step creation failed",
				"history_id", job.HistoryID,
				"category", next.Category,
				"error", err,
			)
		}
		return
	}
	if c.logger != nil {
		c.logger.InfoContext(ctx, "workflow step chained",
			"history_id", job.HistoryID,
			"job_id", created.ID,
			"category", created.Category,
		)
	}
}

// settle acks the message and, when a ref is given, deletes its blob. Both
// are best-effort: a leaked blob or a redelivered message is recoverable,
// a lost result is not.
func (c *Consumer) settle(ctx context.Context, msg *core.ResultMessage, rawRef string) {
	if rawRef != "" {
		if ref, err := model.ParseResultRef(rawRef); err == nil {
			if err := c.blobs.Delete(ctx, ref); err != nil && c.logger != nil {
				c.logger.WarnContext(ctx, "blob delete failed", "ref", rawRef, "error", err)
			}
		}
	}
	if err := c.queue.Ack(ctx, msg); err != nil && c.logger != nil {
		c.logger.ErrorContext(ctx, "ack failed", "job_id", msg.JobID, "error", err)
	}
}

// failContract finalizes the job as failed with a non-retryable diagnostic
// and settles the message. Contract errors never retry: the payload will not
// get better.
func (c *Consumer) failContract(ctx context.Context, msg *core.ResultMessage, job *model.Job, rawRef string, cause error) {
	payload, _ := json.Marshal(msg)
	c.failJob(ctx, job.ID, model.ErrorKindContract, truncate(cause.Error(), maxFailureMessage), payload)
	c.settle(ctx, msg, rawRef)
}

// retryOrDeadLetter schedules another attempt with exponential backoff, or
// dead-letters the message and fails the job once attempts are exhausted.
func (c *Consumer) retryOrDeadLetter(ctx context.Context, msg *core.ResultMessage, cause error) {
	if msg.Attempt+1 < c.maxAttempts {
		delay := c.backoff(msg.Attempt)
		if c.logger != nil {
			c.logger.WarnContext(ctx, "ingest attempt failed, retrying",
				"job_id", msg.JobID,
				"attempt", msg.Attempt,
				"delay", delay,
				"error", cause,
			)
		}
		if err := c.queue.Retry(ctx, msg, delay); err != nil && c.logger != nil {
			c.logger.ErrorContext(ctx, "retry scheduling failed", "job_id", msg.JobID, "error", err)
		}
		return
	}

	payload, _ := json.Marshal(msg)
	c.failJob(ctx, msg.JobID, model.ErrorKindPipeline,
		truncate(fmt.Sprintf("ingestion exhausted after %d attempts: %v", c.maxAttempts, cause), maxFailureMessage),
		payload)
	if err := c.queue.DeadLetter(ctx, msg); err != nil && c.logger != nil {
		c.logger.ErrorContext(ctx, "dead-letter failed", "job_id", msg.JobID, "error", err)
	}
	if ref, err := model.ParseResultRef(msg.ResultRef); err == nil {
		if err := c.blobs.Delete(ctx, ref); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "blob delete failed", "ref", msg.ResultRef, "error", err)
		}
	}
}

func (c *Consumer) failJob(ctx context.Context, jobID string, kind model.ErrorKind, message string, payload []byte) {
	failed, err := c.jobs.Fail(ctx, core.FailParams{
		JobID:   jobID,
		Kind:    kind,
		Message: message,
		Payload: payload,
	})
	if err != nil && c.logger != nil {
		c.logger.ErrorContext(ctx, "fail job error", "job_id", jobID, "error", err)
		return
	}
	if !failed && c.logger != nil {
		c.logger.DebugContext(ctx, "job no longer failable", "job_id", jobID)
	}
}

func (c *Consumer) backoff(attempt int) time.Duration {
	delay := c.retryBackoff
	for i := 0; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
