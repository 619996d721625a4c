package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// ErrorLogRepo reads the append-only job diagnostics log. Writes happen
// inside JobRepo.Fail so the log entry and the state change share a
// transaction.
type ErrorLogRepo struct {
	DB *sql.DB
}

// NewErrorLogRepo creates an ErrorLogRepo.
func NewErrorLogRepo(db *sql.DB) *ErrorLogRepo {
	return &ErrorLogRepo{DB: db}
}

// ListByJob returns all error log entries for a job, oldest first, so an
// operator can follow the full failure history across recycles.
func (r *ErrorLogRepo) ListByJob(ctx context.Context, jobID string) ([]*model.JobErrorLog, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, job_id, kind, message, payload, created_at
		FROM job_error_logs
		WHERE job_id = $1
		ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.JobErrorLog
	for rows.Next() {
		l := &model.JobErrorLog{}
		var payload sql.NullString
		if scanErr := rows.Scan(&l.ID, &l.JobID, &l.Kind, &l.Message, &payload, &l.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("scan error log: %w", scanErr)
		}
		if payload.Valid {
			l.Payload = []byte(payload.String)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	return logs, nil
}
