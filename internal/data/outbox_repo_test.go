package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/testutil"
)

// completePublishingJob runs one job through claim and completion with
// publish_event set, leaving a pending outbox row behind.
func completePublishingJob(t *testing.T, jobs *JobRepo, workers *WorkerRepo) *model.Job {
	t.Helper()
	ctx := context.Background()
	worker := createTestWorker(t, workers)
	job := triggerOneJob(t, jobs, testutil.NewJobRequest().WithPublishEvent().Build())
	claimTestJob(t, jobs, worker.ID, model.CategorySubdomains)
	completed, err := jobs.Complete(ctx, core.CompleteParams{
		JobID:     job.ID,
		RawResult: []byte(`{"raw":"a.example.com"}`),
	})
	require.NoError(t, err)
	require.True(t, completed)
	return job
}

func newOutboxRepoTest(t *testing.T) (*OutboxRepo, *JobRepo, *WorkerRepo, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	return NewOutboxRepo(db, RepoConfig{}),
		NewJobRepo(db, RepoConfig{}),
		NewWorkerRepo(db, RepoConfig{}),
		db
}

func TestOutboxRepo_PendingBatch(t *testing.T) {
	outbox, jobs, workers, _ := newOutboxRepoTest(t)
	ctx := context.Background()

	first := completePublishingJob(t, jobs, workers)
	second := completePublishingJob(t, jobs, workers)

	entries, err := outbox.PendingBatch(ctx, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Oldest first, and the payload carries the completion event.
	assert.Equal(t, first.ID, entries[0].JobID)
	assert.Equal(t, second.ID, entries[1].JobID)
	assert.Equal(t, model.OutboxStatusPending, entries[0].Status)
	assert.Zero(t, entries[0].Attempts)

	var event model.JobCompletedEvent
	require.NoError(t, json.Unmarshal(entries[0].Payload, &event))
	assert.Equal(t, first.ID, event.JobID)
	assert.Equal(t, model.JobStatusCompleted, event.Status)

	limited, err := outbox.PendingBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].JobID)
}

func TestOutboxRepo_MarkSent(t *testing.T) {
	outbox, jobs, workers, _ := newOutboxRepoTest(t)
	ctx := context.Background()

	completePublishingJob(t, jobs, workers)
	entries, err := outbox.PendingBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, outbox.MarkSent(ctx, entries[0].ID))

	remaining, err := outbox.PendingBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestOutboxRepo_MarkError(t *testing.T) {
	outbox, jobs, workers, db := newOutboxRepoTest(t)
	ctx := context.Background()

	completePublishingJob(t, jobs, workers)
	entries, err := outbox.PendingBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	id := entries[0].ID

	// A non-terminal failure keeps the entry pending for the next pass.
	require.NoError(t, outbox.MarkError(ctx, id, false))
	entries, err = outbox.PendingBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Attempts)

	// A terminal failure parks it.
	require.NoError(t, outbox.MarkError(ctx, id, true))
	entries, err = outbox.PendingBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	var status string
	var attempts int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT status, attempts FROM outbox WHERE id = $1`, id,
	).Scan(&status, &attempts))
	assert.Equal(t, string(model.OutboxStatusError), status)
	assert.Equal(t, 2, attempts)
}

func TestAPIKeyRepo_ListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	repo := NewAPIKeyRepo(db)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, kind, scope, workspace_id, active, created_at)
		VALUES ('hash-active', 'built_in', 'cloud', NULL, true, $1),
		       ('hash-revoked', 'provider', 'workspace', NULL, false, $1)
	`, time.Now().UTC())
	require.NoError(t, err)

	keys, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "hash-active", keys[0].KeyHash)
	assert.Equal(t, model.WorkerTypeBuiltIn, keys[0].Kind)
	assert.Equal(t, model.WorkerScopeCloud, keys[0].Scope)
	assert.Nil(t, keys[0].WorkspaceID)
}
