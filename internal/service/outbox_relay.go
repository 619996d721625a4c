package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/surfaceops/surface-api/config"
	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/observability/metrics"
	"github.com/surfaceops/surface-api/internal/observability/statsd"
)

// OutboxRelayOptions groups dependencies for OutboxRelay.
type OutboxRelayOptions struct {
	Repo      core.OutboxRepository // Required: outbox rows
	Publisher core.Publisher        // Required: pub/sub transport
	Config    config.OutboxConfig   // Required: interval, batch size, topic
	Logger    *slog.Logger          // Optional: structured logger
	Metrics   statsd.Sink           // Optional: metrics sink
}

// OutboxRelay drains pending outbox entries to the pub/sub channel.
// Delivery is at-least-once: an entry is marked sent only after Publish
// returns, so a crash between the two produces a duplicate, never a loss.
type OutboxRelay struct {
	repo      core.OutboxRepository
	publisher core.Publisher
	config    config.OutboxConfig
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewOutboxRelay constructs a new OutboxRelay.
func NewOutboxRelay(opts OutboxRelayOptions) (*OutboxRelay, error) {
	if opts.Repo == nil {
		return nil, stderrors.New("OutboxRepository is required")
	}
	if opts.Publisher == nil {
		return nil, stderrors.New("Publisher is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, stderrors.New("outbox interval must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "outbox_relay")
	}
	return &OutboxRelay{
		repo:      opts.Repo,
		publisher: opts.Publisher,
		config:    opts.Config,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewOutboxRelay constructs a new OutboxRelay and panics on error.
func MustNewOutboxRelay(opts OutboxRelayOptions) *OutboxRelay {
	relay, err := NewOutboxRelay(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create OutboxRelay: %v", err))
	}
	return relay
}

// Run drains the outbox on the configured interval until the context is
// cancelled. Returns nil on graceful shutdown.
func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.logger != nil {
		r.logger.InfoContext(ctx, "starting outbox relay",
			"interval", r.config.Interval,
			"topic", r.config.Topic,
		)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if r.logger != nil {
				r.logger.InfoContext(ctx, "outbox relay stopping", "reason", ctx.Err())
			}
			if stderrors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil && r.logger != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// DrainOnce publishes one batch of pending entries. Exported so tests and
// the admin surface can force a drain.
func (r *OutboxRelay) DrainOnce(ctx context.Context) error {
	entries, err := r.repo.PendingBatch(ctx, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("load pending outbox batch: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := r.publisher.Publish(ctx, r.config.Topic, entry.Payload); err != nil {
			terminal := entry.Attempts+1 >= r.config.MaxAttempts
			metrics.EmitOutbox(r.metrics, metrics.ResultError, err)
			if r.logger != nil {
				r.logger.WarnContext(ctx, "outbox publish failed",
					"entry_id", entry.ID,
					"job_id", entry.JobID,
					"attempts", entry.Attempts+1,
					"terminal", terminal,
					"error", err,
				)
			}
			if merr := r.repo.MarkError(ctx, entry.ID, terminal); merr != nil && r.logger != nil {
				r.logger.ErrorContext(ctx, "outbox mark error failed", "entry_id", entry.ID, "error", merr)
			}
			continue
		}

		if err := r.repo.MarkSent(ctx, entry.ID); err != nil {
			// The event went out but the row stays pending; the next drain
			// publishes it again. At-least-once, by construction.
			if r.logger != nil {
				r.logger.ErrorContext(ctx, "outbox mark sent failed", "entry_id", entry.ID, "error", err)
			}
			continue
		}
		metrics.EmitOutbox(r.metrics, metrics.ResultSuccess, nil)
	}
	return nil
}
