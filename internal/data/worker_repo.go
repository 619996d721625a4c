package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/domain/model"
)

// ErrTokenCollision is returned when a freshly minted worker token already
// exists. With 256-bit random tokens this indicates a broken RNG, not bad luck.
var ErrTokenCollision = errors.New("worker token collision")

// WorkerRepo provides database operations for the worker registry.
type WorkerRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewWorkerRepo creates a WorkerRepo.
func NewWorkerRepo(db *sql.DB, cfg RepoConfig) *WorkerRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &WorkerRepo{DB: db, timeProvider: tp, logger: cfg.Logger}
}

const workerColumns = `id, token, type, scope, workspace_id, tool, last_seen_at, created_at`

func scanWorker(scanner jobRowScanner) (*model.Worker, error) {
	w := &model.Worker{}
	var workspaceID, tool sql.NullString
	if err := scanner.Scan(
		&w.ID, &w.Token, &w.Type, &w.Scope, &workspaceID, &tool, &w.LastSeenAt, &w.CreatedAt,
	); err != nil {
		return nil, err
	}
	w.WorkspaceID = nullableString(workspaceID)
	w.Tool = nullableString(tool)
	return w, nil
}

// Create registers a new worker. Every join creates a fresh identity; workers
// are never deduplicated by credential.
func (r *WorkerRepo) Create(ctx context.Context, params core.CreateWorkerParams) (*model.Worker, error) {
	if params.Token == "" {
		return nil, errors.New("worker token is required")
	}
	if !params.Type.Valid() || !params.Scope.Valid() {
		return nil, errors.New("invalid worker type or scope")
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO workers (token, type, scope, workspace_id, tool, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+workerColumns,
		params.Token, params.Type, params.Scope, params.WorkspaceID, params.Tool, now,
	)
	worker, err := scanWorker(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrTokenCollision
		}
		return nil, fmt.Errorf("insert worker: %w", err)
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "worker registered",
			"id", worker.ID,
			"type", worker.Type,
			"scope", worker.Scope,
		)
	}
	return worker, nil
}

// GetByToken resolves a worker from its bearer token.
func (r *WorkerRepo) GetByToken(ctx context.Context, token string) (*model.Worker, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE token = $1`, token)
	worker, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get worker by token: %w", err)
	}
	return worker, nil
}

// Touch refreshes last_seen_at for the worker holding the token. Returns
// false when the token is unknown, meaning the worker must re-join.
func (r *WorkerRepo) Touch(ctx context.Context, token string, seenAt time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE workers SET last_seen_at = $2 WHERE token = $1`, token, seenAt.UTC())
	if err != nil {
		return false, fmt.Errorf("touch worker: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns workers visible to a workspace (its own plus cloud-scoped
// ones), each annotated with its live in-progress job count via one JOIN.
func (r *WorkerRepo) List(
	ctx context.Context,
	opts model.WorkerListOptions,
) ([]*model.WorkerWithJobCount, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT w.id, w.token, w.type, w.scope, w.workspace_id, w.tool, w.last_seen_at, w.created_at,
		       count(j.id) FILTER (WHERE j.status = 'in_progress') AS in_progress_jobs
		FROM workers w
		LEFT JOIN jobs j ON j.worker_id = w.id
		WHERE w.scope = 'cloud'
		   OR ($1::uuid IS NULL AND w.workspace_id IS NULL)
		   OR w.workspace_id = $1
		GROUP BY w.id
		ORDER BY w.created_at ASC
	`, opts.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []*model.WorkerWithJobCount
	for rows.Next() {
		w := &model.WorkerWithJobCount{}
		var workspaceID, tool sql.NullString
		if scanErr := rows.Scan(
			&w.ID, &w.Token, &w.Type, &w.Scope, &workspaceID, &tool,
			&w.LastSeenAt, &w.CreatedAt, &w.InProgressJobs,
		); scanErr != nil {
			return nil, fmt.Errorf("scan worker: %w", scanErr)
		}
		w.WorkspaceID = nullableString(workspaceID)
		w.Tool = nullableString(tool)
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return workers, nil
}
