package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// JobHistoryRepo provides database operations for job history listings.
type JobHistoryRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewJobHistoryRepo creates a JobHistoryRepo.
func NewJobHistoryRepo(db *sql.DB, cfg RepoConfig) *JobHistoryRepo {
	return &JobHistoryRepo{DB: db, logger: cfg.Logger}
}

const historyCountsSQL = `
  SELECT
    h.id,
    h.workflow_name,
    h.created_at,
    h.updated_at,
    count(j.id)                                          AS total,
    count(j.id) FILTER (WHERE j.status = 'pending')      AS pending,
    count(j.id) FILTER (WHERE j.status = 'in_progress')  AS in_progress,
    count(j.id) FILTER (WHERE j.status = 'completed')    AS completed,
    count(j.id) FILTER (WHERE j.status = 'failed')       AS failed,
    count(j.id) FILTER (WHERE j.status = 'cancelled')    AS cancelled
  FROM job_histories h
  LEFT JOIN jobs j ON j.history_id = h.id
`

func scanHistoryWithCounts(scanner jobRowScanner) (*model.JobHistoryWithCounts, error) {
	h := &model.JobHistoryWithCounts{}
	if err := scanner.Scan(
		&h.ID,
		&h.WorkflowName,
		&h.CreatedAt,
		&h.UpdatedAt,
		&h.Counts.Total,
		&h.Counts.Pending,
		&h.Counts.InProgress,
		&h.Counts.Completed,
		&h.Counts.Failed,
		&h.Counts.Cancelled,
	); err != nil {
		return nil, err
	}
	h.Status = h.Counts.AggregateStatus()
	return h, nil
}

// List returns histories with derived status, paginated and sortable.
func (r *JobHistoryRepo) List(
	ctx context.Context,
	opts model.JobHistoryListOptions,
) ([]*model.JobHistoryWithCounts, error) {
	sortBy := opts.SortBy
	if !sortBy.Valid() {
		sortBy = model.SortByCreatedAt
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	// sortBy is validated against the enum above; never interpolate user input.
	query := fmt.Sprintf(
		`%s GROUP BY h.id ORDER BY h.%s %s LIMIT $1 OFFSET $2`,
		historyCountsSQL, sortBy, direction,
	)

	rows, err := r.DB.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list job histories: %w", err)
	}
	defer rows.Close()

	var histories []*model.JobHistoryWithCounts
	for rows.Next() {
		h, scanErr := scanHistoryWithCounts(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job history: %w", scanErr)
		}
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list job histories: %w", err)
	}
	return histories, nil
}

// GetDetail returns one history with counts and its member jobs ordered by
// creation time.
func (r *JobHistoryRepo) GetDetail(ctx context.Context, id string) (*model.JobHistoryDetail, error) {
	row := r.DB.QueryRowContext(ctx, historyCountsSQL+` WHERE h.id = $1 GROUP BY h.id`, id)
	h, err := scanHistoryWithCounts(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job history: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE history_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list history jobs: %w", err)
	}
	defer rows.Close()

	detail := &model.JobHistoryDetail{JobHistoryWithCounts: *h}
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan history job: %w", scanErr)
		}
		detail.Jobs = append(detail.Jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history jobs: %w", err)
	}
	return detail, nil
}
