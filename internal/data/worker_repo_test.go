package data

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/testutil"
)

func TestWorkerRepo_CreateAndResolve(t *testing.T) {
	_, workers, _ := newJobRepoTest(t)
	ctx := context.Background()

	tool := "subfinder"
	workspaceID := uuid.NewString()
	token := uuid.NewString()

	created, err := workers.Create(ctx, core.CreateWorkerParams{
		Token:       token,
		Type:        model.WorkerTypeProvider,
		Scope:       model.WorkerScopeWorkspace,
		WorkspaceID: &workspaceID,
		Tool:        &tool,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.WorkerTypeProvider, created.Type)
	require.NotNil(t, created.WorkspaceID)
	assert.Equal(t, workspaceID, *created.WorkspaceID)

	got, err := workers.GetByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = workers.GetByToken(ctx, "unknown-token")
	assert.ErrorIs(t, err, ErrWorkerNotFound)
}

func TestWorkerRepo_Create_Validation(t *testing.T) {
	_, workers, _ := newJobRepoTest(t)
	ctx := context.Background()

	_, err := workers.Create(ctx, core.CreateWorkerParams{
		Type:  model.WorkerTypeBuiltIn,
		Scope: model.WorkerScopeCloud,
	})
	assert.Error(t, err)

	_, err = workers.Create(ctx, core.CreateWorkerParams{
		Token: uuid.NewString(),
		Type:  "bogus",
		Scope: model.WorkerScopeCloud,
	})
	assert.Error(t, err)
}

func TestWorkerRepo_Create_TokenCollision(t *testing.T) {
	_, workers, _ := newJobRepoTest(t)
	ctx := context.Background()

	token := uuid.NewString()
	params := core.CreateWorkerParams{
		Token: token,
		Type:  model.WorkerTypeBuiltIn,
		Scope: model.WorkerScopeCloud,
	}
	_, err := workers.Create(ctx, params)
	require.NoError(t, err)

	_, err = workers.Create(ctx, params)
	assert.ErrorIs(t, err, ErrTokenCollision)
}

func TestWorkerRepo_Touch(t *testing.T) {
	_, workers, _ := newJobRepoTest(t)
	ctx := context.Background()

	worker := createTestWorker(t, workers)

	seenAt := time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond)
	ok, err := workers.Touch(ctx, worker.Token, seenAt)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := workers.GetByToken(ctx, worker.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, seenAt, got.LastSeenAt, time.Millisecond)

	ok, err = workers.Touch(ctx, "unknown-token", seenAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkerRepo_List_WorkspaceScoping(t *testing.T) {
	jobs, workers, _ := newJobRepoTest(t)
	ctx := context.Background()

	wsA := uuid.NewString()
	wsB := uuid.NewString()

	cloud := createTestWorker(t, workers)
	scoped, err := workers.Create(ctx, core.CreateWorkerParams{
		Token:       uuid.NewString(),
		Type:        model.WorkerTypeProvider,
		Scope:       model.WorkerScopeWorkspace,
		WorkspaceID: &wsA,
	})
	require.NoError(t, err)

	// Give the cloud worker a running job so the count is visible.
	triggerOneJob(t, jobs, testutil.NewJobRequest().Build())
	claimTestJob(t, jobs, cloud.ID, model.CategorySubdomains)

	listed, err := workers.List(ctx, model.WorkerListOptions{WorkspaceID: &wsA})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	byID := map[string]*model.WorkerWithJobCount{}
	for _, w := range listed {
		byID[w.ID] = w
	}
	require.Contains(t, byID, cloud.ID)
	require.Contains(t, byID, scoped.ID)
	assert.Equal(t, 1, byID[cloud.ID].InProgressJobs)
	assert.Zero(t, byID[scoped.ID].InProgressJobs)

	// Another workspace sees only cloud workers.
	listed, err = workers.List(ctx, model.WorkerListOptions{WorkspaceID: &wsB})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, cloud.ID, listed[0].ID)
}
