package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Advisory lock namespace for reconciler sweeps. Two-arg
// pg_try_advisory_xact_lock(major, minor) keeps concurrent orchestrator
// instances from running the same sweep twice.
const (
	advisoryLockReconcileMajor   = 1000
	advisoryLockReconcileWorkers = 1 // minor key for ExpireStaleWorkers
	advisoryLockReconcileOrphans = 2 // minor key for ReleaseOrphanedJobs
	advisoryLockReconcileRecycle = 3 // minor key for RecycleFailedJobs
)

func tryAdvisoryLock(ctx context.Context, tx *sql.Tx, minor int) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx,
		"SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReconcileMajor, minor,
	).Scan(&locked); err != nil {
		return false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	return locked, nil
}

// ExpireStaleWorkers reverts the in-progress jobs of every worker whose
// last_seen_at predates the deadline back to pending, then deletes those
// worker rows. Both steps run in one transaction so a released job can never
// point at a worker row that still exists.
func (r *JobRepo) ExpireStaleWorkers(
	ctx context.Context,
	deadline time.Time,
) (workersRemoved, jobsReleased int64, err error) {
	err = withTx(ctx, r.DB, func(tx *sql.Tx) error {
		locked, lockErr := tryAdvisoryLock(ctx, tx, advisoryLockReconcileWorkers)
		if lockErr != nil {
			return lockErr
		}
		if !locked {
			return nil
		}

		now := r.timeProvider.Now().UTC()
		res, execErr := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending', worker_id = NULL, updated_at = $2
			WHERE status = 'in_progress'
			  AND worker_id IN (SELECT id FROM workers WHERE last_seen_at < $1)
		`, deadline.UTC(), now)
		if execErr != nil {
			return fmt.Errorf("release jobs of stale workers: %w", execErr)
		}
		if jobsReleased, execErr = res.RowsAffected(); execErr != nil {
			return fmt.Errorf("rows affected: %w", execErr)
		}

		res, execErr = tx.ExecContext(ctx,
			`DELETE FROM workers WHERE last_seen_at < $1`, deadline.UTC())
		if execErr != nil {
			return fmt.Errorf("delete stale workers: %w", execErr)
		}
		if workersRemoved, execErr = res.RowsAffected(); execErr != nil {
			return fmt.Errorf("rows affected: %w", execErr)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return workersRemoved, jobsReleased, nil
}

// ReleaseOrphanedJobs reverts in-progress jobs whose worker row no longer
// exists. Defensive sweep covering races where a worker row vanished without
// its jobs being released.
func (r *JobRepo) ReleaseOrphanedJobs(ctx context.Context) (int64, error) {
	var released int64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		locked, lockErr := tryAdvisoryLock(ctx, tx, advisoryLockReconcileOrphans)
		if lockErr != nil {
			return lockErr
		}
		if !locked {
			return nil
		}

		res, execErr := tx.ExecContext(ctx, `
			UPDATE jobs j
			SET status = 'pending', worker_id = NULL, updated_at = $1
			WHERE status = 'in_progress'
			  AND NOT EXISTS (SELECT 1 FROM workers w WHERE w.id = j.worker_id)
		`, r.timeProvider.Now().UTC())
		if execErr != nil {
			return fmt.Errorf("release orphaned jobs: %w", execErr)
		}
		var raErr error
		if released, raErr = res.RowsAffected(); raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// RecycleFailedJobs moves failed jobs below the recycle ceiling back to
// pending. maxRecycles <= 0 disables recycling entirely.
func (r *JobRepo) RecycleFailedJobs(ctx context.Context, maxRecycles int) (int64, error) {
	if maxRecycles <= 0 {
		return 0, nil
	}

	var recycled int64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		locked, lockErr := tryAdvisoryLock(ctx, tx, advisoryLockReconcileRecycle)
		if lockErr != nil {
			return lockErr
		}
		if !locked {
			return nil
		}

		res, execErr := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending', retry_count = retry_count + 1, updated_at = $2
			WHERE status = 'failed' AND retry_count < $1
		`, maxRecycles, r.timeProvider.Now().UTC())
		if execErr != nil {
			return fmt.Errorf("recycle failed jobs: %w", execErr)
		}
		var raErr error
		if recycled, raErr = res.RowsAffected(); raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recycled, nil
}
