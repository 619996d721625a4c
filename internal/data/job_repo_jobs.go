package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/domain/model"
)

// SQL used by ClaimNext to atomically bind the oldest pending job of a
// category to a worker. FIFO by creation time within the capability class;
// SKIP LOCKED keeps concurrent claimants from blocking each other.
const claimNextSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE category = $1 AND status = 'pending'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'in_progress',
    worker_id = $2,
    picked_at = $3,
    updated_at = $3
  FROM cte
  WHERE j.id = cte.id
  RETURNING ` + prefixedJobColumns

// jobColumns qualified for UPDATE ... RETURNING with the jobs alias.
const prefixedJobColumns = `
  j.id, j.history_id, j.category, j.command, j.status, j.priority,
  j.worker_id, j.asset_id, j.target_id, j.retry_count,
  j.save_raw_result, j.save_data, j.publish_event, j.raw_result,
  j.picked_at, j.completed_at, j.created_at, j.updated_at`

// CreateBatch inserts a new job history and its member jobs in one transaction.
func (r *JobRepo) CreateBatch(
	ctx context.Context,
	req *model.TriggerWorkflowRequest,
) (*model.JobHistory, []*model.Job, error) {
	if req == nil {
		return nil, nil, errors.New("trigger workflow request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		history model.JobHistory
		jobs    []*model.Job
	)
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		now := r.timeProvider.Now().UTC()
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO job_histories (workflow_name, created_at, updated_at)
			VALUES ($1, $2, $2)
			RETURNING id, workflow_name, created_at, updated_at
		`, req.WorkflowName, now).Scan(
			&history.ID, &history.WorkflowName, &history.CreatedAt, &history.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert job history: %w", err)
		}

		for _, jobReq := range req.Jobs {
			job, err := insertJob(ctx, tx, history.ID, jobReq, now)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job batch created",
			"history_id", history.ID,
			"workflow", history.WorkflowName,
			"jobs", len(jobs),
		)
	}
	return &history, jobs, nil
}

// CreateInHistory appends one job to an existing history. Used by the
// ingestion pipeline to enqueue the next step of a workflow chain.
func (r *JobRepo) CreateInHistory(
	ctx context.Context,
	historyID string,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var job *model.Job
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM job_histories WHERE id = $1)`, historyID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check history: %w", err)
		}
		if !exists {
			return ErrHistoryNotFound
		}

		var insertErr error
		job, insertErr = insertJob(ctx, tx, historyID, req, r.timeProvider.Now().UTC())
		return insertErr
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func insertJob(
	ctx context.Context,
	tx *sql.Tx,
	historyID string,
	req *model.CreateJobRequest,
	now time.Time,
) (*model.Job, error) {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO jobs (history_id, category, command, priority, asset_id, target_id,
		                  save_raw_result, save_data, publish_event, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+jobColumns,
		historyID, req.Category, req.Command, req.Priority, req.AssetID, req.TargetID,
		req.SaveRawResult, req.SaveData, req.PublishEvent, now,
	)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically claims the oldest pending job matching the worker's
// capability. Returns model.ErrNoJobsAvailable when nothing is eligible.
func (r *JobRepo) ClaimNext(ctx context.Context, params core.ClaimParams) (*model.Job, error) {
	if !params.Category.Valid() {
		return nil, fmt.Errorf("invalid job category: %s", params.Category)
	}

	var job *model.Job
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		now := r.timeProvider.Now().UTC()
		row := tx.QueryRowContext(ctx, claimNextSQL, params.Category, params.WorkerID, now)
		j, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNoJobsAvailable
		}
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job claimed",
			"id", job.ID,
			"category", job.Category,
			"worker_id", params.WorkerID,
		)
	}
	return job, nil
}

// Complete finalizes a successful job. The status guard makes a late report
// for a cancelled job a no-op; the outbox row, when requested by the job, is
// written in the same transaction as the completion.
func (r *JobRepo) Complete(ctx context.Context, params core.CompleteParams) (bool, error) {
	var completed bool
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		now := params.CompletedAt.UTC()
		if now.IsZero() {
			now = r.timeProvider.Now().UTC()
		}

		var rawResult any
		if params.SaveRaw && len(params.RawResult) > 0 {
			rawResult = params.RawResult
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE jobs
			SET status = 'completed',
			    worker_id = NULL,
			    raw_result = $2,
			    completed_at = $3,
			    updated_at = $3
			WHERE id = $1 AND status = 'in_progress'
			RETURNING history_id, category, publish_event
		`, params.JobID, rawResult, now)

		var (
			historyID    string
			category     model.JobCategory
			publishEvent bool
		)
		if err := row.Scan(&historyID, &category, &publishEvent); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				completed = false
				return nil
			}
			return fmt.Errorf("complete job: %w", err)
		}
		completed = true

		if _, err := tx.ExecContext(ctx,
			`UPDATE job_histories SET updated_at = $2 WHERE id = $1`, historyID, now,
		); err != nil {
			return fmt.Errorf("touch job history: %w", err)
		}

		if publishEvent {
			payload, err := model.JobCompletedEvent{
				JobID:       params.JobID,
				HistoryID:   historyID,
				Category:    category,
				Status:      model.JobStatusCompleted,
				CompletedAt: now,
			}.Marshal()
			if err != nil {
				return fmt.Errorf("marshal outbox payload: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO outbox (job_id, payload, status, created_at, updated_at)
				VALUES ($1, $2, 'pending', $3, $3)
			`, params.JobID, payload, now); err != nil {
				return fmt.Errorf("insert outbox entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if r.logger != nil && completed {
		r.logger.DebugContext(ctx, "job completed", "id", params.JobID)
	}
	return completed, nil
}

// Fail terminally fails an in-progress job and appends its error log entry in
// the same transaction. Returns false if the job was no longer in progress.
func (r *JobRepo) Fail(ctx context.Context, params core.FailParams) (bool, error) {
	if params.Message == "" {
		return false, errors.New("error message required")
	}
	kind := params.Kind
	if !kind.Valid() {
		kind = model.ErrorKindPipeline
	}

	var failed bool
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		now := r.timeProvider.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
			    worker_id = NULL,
			    updated_at = $2
			WHERE id = $1 AND status = 'in_progress'
		`, params.JobID, now)
		if err != nil {
			return fmt.Errorf("fail job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			failed = false
			return nil
		}
		failed = true

		var payload any
		if len(params.Payload) > 0 {
			payload = params.Payload
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO job_error_logs (job_id, kind, message, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, params.JobID, kind, params.Message, payload, now); err != nil {
			return fmt.Errorf("append job error log: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if r.logger != nil && failed {
		r.logger.DebugContext(ctx, "job failed", "id", params.JobID, "kind", kind, "error", params.Message)
	}
	return failed, nil
}

// Cancel moves a pending or in-progress job to cancelled. A result report
// arriving after cancellation finds the status guard in Complete and is
// discarded there.
func (r *JobRepo) Cancel(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'cancelled',
		    worker_id = NULL,
		    updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'in_progress')
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Rerun recycles a failed or cancelled job back to pending for another attempt.
func (r *JobRepo) Rerun(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    worker_id = NULL,
		    retry_count = retry_count + 1,
		    updated_at = $2
		WHERE id = $1 AND status IN ('failed', 'cancelled')
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("rerun job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a job that is not currently bound to a worker.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id = $1
		  AND status IN ('pending', 'completed', 'failed', 'cancelled')
	`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish "gone" from "still running".
	if _, err := r.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("re-check job after delete attempt: %w", err)
	}
	return ErrJobNotDeletable
}

// Stats returns per-state job counts for a capability class.
func (r *JobRepo) Stats(ctx context.Context, category model.JobCategory) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
	  SELECT
	    count(*) FILTER (WHERE status = 'pending')     AS pending,
	    count(*) FILTER (WHERE status = 'in_progress') AS in_progress,
	    count(*) FILTER (WHERE status = 'completed')   AS completed,
	    count(*) FILTER (WHERE status = 'failed')      AS failed,
	    count(*) FILTER (WHERE status = 'cancelled')   AS cancelled
	  FROM jobs
	  WHERE category = $1
	`, category).Scan(&s.Pending, &s.InProgress, &s.Completed, &s.Failed, &s.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}
