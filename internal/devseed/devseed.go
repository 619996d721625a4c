// Package devseed populates a development database with join credentials and
// demo orchestration data. It is only wired up when the service runs in dev
// mode and every step is idempotent, so repeated startups are safe.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/surfaceops/surface-api/config"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/service"
)

// DevWorkspaceID is the workspace every seeded demo object belongs to.
const DevWorkspaceID = "00000000-0000-0000-0000-000000000001"

// Plaintext join keys for local workers. Logged at startup, never used
// outside dev mode.
const (
	devCloudJoinKey     = "dev-cloud-join-key"
	devWorkspaceJoinKey = "dev-workspace-join-key"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB   *sql.DB
	keys *data.APIKeyRepo
	jobs *service.JobService
}

// NewServices constructs the repositories and services used for seeding.
func NewServices(db *sql.DB, logger *slog.Logger) (Services, error) {
	repoCfg := data.RepoConfig{Logger: logger}
	jobs, err := service.NewJobService(service.JobServiceOptions{
		Jobs:      data.NewJobRepo(db, repoCfg),
		Histories: data.NewJobHistoryRepo(db, repoCfg),
		ErrorLogs: data.NewErrorLogRepo(db),
		Workflows: config.DefaultWorkflows(),
		Logger:    logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build job service for seeding: %w", err)
	}
	return Services{
		DB:   db,
		keys: data.NewAPIKeyRepo(db),
		jobs: jobs,
	}, nil
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	seeds := []joinKeySeed{
		{plaintext: devCloudJoinKey, scope: model.WorkerScopeCloud},
		{plaintext: devWorkspaceJoinKey, scope: model.WorkerScopeWorkspace, workspaceID: DevWorkspaceID},
	}
	for _, seed := range seeds {
		created, err := ensureJoinKey(ctx, svcs, seed)
		if err != nil {
			return fmt.Errorf("seed %s join key: %w", seed.scope, err)
		}
		if logger != nil {
			msg := "join key already seeded"
			if created {
				msg = "seeded join key"
			}
			logger.InfoContext(ctx, msg, "scope", seed.scope, "key", seed.plaintext)
		}
	}

	if err := seedDemoRun(ctx, svcs, logger); err != nil {
		return fmt.Errorf("seed demo workflow run: %w", err)
	}
	return nil
}

type joinKeySeed struct {
	plaintext   string
	scope       model.WorkerScope
	workspaceID string
}

// ensureJoinKey inserts a bcrypt hash of the seed key unless an active
// provider key already matches it. The match check mirrors the join flow, so
// a key seeded by an older build still counts.
func ensureJoinKey(ctx context.Context, svcs Services, seed joinKeySeed) (bool, error) {
	active, err := svcs.keys.ListActive(ctx)
	if err != nil {
		return false, err
	}
	for _, key := range active {
		if key.Kind != model.WorkerTypeProvider {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(seed.plaintext)) == nil {
			return false, nil
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.plaintext), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash join key: %w", err)
	}

	var workspaceID sql.NullString
	if seed.workspaceID != "" {
		workspaceID = sql.NullString{String: seed.workspaceID, Valid: true}
	}
	_, err = svcs.DB.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, kind, scope, workspace_id, active)
		VALUES ($1, $2, $3, $4, true)
	`, string(hash), string(model.WorkerTypeProvider), string(seed.scope), workspaceID)
	if err != nil {
		return false, fmt.Errorf("insert api key: %w", err)
	}
	return true, nil
}

// seedDemoRun triggers one surface-discovery run so a fresh dev database has
// a job to claim. Skipped whenever any history exists, so it fires at most
// once per database.
func seedDemoRun(ctx context.Context, svcs Services, logger *slog.Logger) error {
	var count int
	if err := svcs.DB.QueryRowContext(ctx, `SELECT count(*) FROM job_histories`).Scan(&count); err != nil {
		return fmt.Errorf("count job histories: %w", err)
	}
	if count > 0 {
		return nil
	}

	history, _, err := svcs.jobs.TriggerWorkflow(ctx, &model.TriggerWorkflowRequest{
		WorkflowName: "surface-discovery",
		Target:       "dev.example.com",
	})
	if err != nil {
		return err
	}
	if logger != nil {
		logger.InfoContext(ctx, "seeded demo workflow run", "history_id", history.ID, "target", "dev.example.com")
	}
	return nil
}
