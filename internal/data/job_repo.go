package data

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// RepoConfig holds configuration options shared by the repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for jobs and their histories.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a JobRepo with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  history_id,
  category,
  command,
  status,
  priority,
  worker_id,
  asset_id,
  target_id,
  retry_count,
  save_raw_result,
  save_data,
  publish_event,
  raw_result,
  picked_at,
  completed_at,
  created_at,
  updated_at
`

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var (
		workerID, assetID, targetID sql.NullString
		rawResult                   []byte
		pickedAt, completedAt       sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID,
		&job.HistoryID,
		&job.Category,
		&job.Command,
		&job.Status,
		&job.Priority,
		&workerID,
		&assetID,
		&targetID,
		&job.RetryCount,
		&job.SaveRawResult,
		&job.SaveData,
		&job.PublishEvent,
		&rawResult,
		&pickedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.WorkerID = nullableString(workerID)
	job.AssetID = nullableString(assetID)
	job.TargetID = nullableString(targetID)
	job.PickedAt = nullableTime(pickedAt)
	job.CompletedAt = nullableTime(completedAt)
	if len(rawResult) > 0 {
		job.RawResult = append(json.RawMessage(nil), rawResult...)
	}
	return job, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
