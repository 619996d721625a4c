package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// OutboxRepo provides the relay side of the transactional outbox. Entries are
// inserted by JobRepo.Complete inside the completion transaction; this repo
// only reads pending rows and advances their status.
type OutboxRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewOutboxRepo creates an OutboxRepo.
func NewOutboxRepo(db *sql.DB, cfg RepoConfig) *OutboxRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &OutboxRepo{DB: db, timeProvider: tp, logger: cfg.Logger}
}

// PendingBatch returns the oldest pending entries. Delivery is at-least-once:
// two relays draining the same batch produce duplicate publishes, which
// subscribers already tolerate, so no row locking is needed here.
func (r *OutboxRepo) PendingBatch(ctx context.Context, limit int) ([]*model.OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, job_id, payload, status, attempts, created_at, updated_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []*model.OutboxEntry
	for rows.Next() {
		e := &model.OutboxEntry{}
		if scanErr := rows.Scan(
			&e.ID, &e.JobID, &e.Payload, &e.Status, &e.Attempts, &e.CreatedAt, &e.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select pending outbox: %w", err)
	}
	return entries, nil
}

// MarkSent records successful publication.
func (r *OutboxRepo) MarkSent(ctx context.Context, id string) error {
	now := r.timeProvider.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox
		SET status = 'sent', attempts = attempts + 1, updated_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

// MarkError records a failed publication attempt. Non-terminal failures keep
// the entry pending so the next relay pass retries it; terminal ones park the
// entry in error status for operator inspection.
func (r *OutboxRepo) MarkError(ctx context.Context, id string, terminal bool) error {
	status := model.OutboxStatusPending
	if terminal {
		status = model.OutboxStatusError
	}
	now := r.timeProvider.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox
		SET status = $2, attempts = attempts + 1, updated_at = $3
		WHERE id = $1
	`, id, status, now)
	if err != nil {
		return fmt.Errorf("mark outbox error: %w", err)
	}
	if terminal && r.logger != nil {
		r.logger.WarnContext(ctx, "outbox entry parked after repeated failures", "id", id)
	}
	return nil
}
