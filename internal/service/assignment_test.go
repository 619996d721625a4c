package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/domain/model"
	apperrors "github.com/surfaceops/surface-api/internal/errors"
	"github.com/surfaceops/surface-api/internal/mocks"
)

func claimWorker() *model.Worker {
	return &model.Worker{ID: "w-1", Token: "tok-1", Scope: model.WorkerScopeWorkspace}
}

func TestAssignmentService_Claim(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	workers := mocks.NewMockWorkerRepository(ctrl)
	svc := MustNewAssignmentService(AssignmentServiceOptions{Jobs: jobs, Workers: workers})

	workers.EXPECT().Touch(gomock.Any(), "tok-1", gomock.Any()).Return(true, nil)
	jobs.EXPECT().
		ClaimNext(gomock.Any(), core.ClaimParams{WorkerID: "w-1", Category: model.CategorySubdomains}).
		Return(&model.Job{
			ID:       "job-1",
			Category: model.CategorySubdomains,
			Command:  "subfinder -d example.com -silent",
			Status:   model.JobStatusInProgress,
		}, nil)

	claimed, err := svc.Claim(context.Background(), claimWorker(), model.CategorySubdomains)
	require.NoError(t, err)

	assert.Equal(t, "job-1", claimed.ID)
	assert.Equal(t, model.CategorySubdomains, claimed.Category)
	assert.Equal(t, "subfinder -d example.com -silent", claimed.Command)
}

func TestAssignmentService_Claim_NoJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	workers := mocks.NewMockWorkerRepository(ctrl)
	svc := MustNewAssignmentService(AssignmentServiceOptions{Jobs: jobs, Workers: workers})

	// An empty poll still refreshes liveness.
	workers.EXPECT().Touch(gomock.Any(), "tok-1", gomock.Any()).Return(true, nil)
	jobs.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(nil, model.ErrNoJobsAvailable)

	_, err := svc.Claim(context.Background(), claimWorker(), model.CategorySubdomains)
	assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
}

func TestAssignmentService_Claim_ExpiredWorker(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	workers := mocks.NewMockWorkerRepository(ctrl)
	svc := MustNewAssignmentService(AssignmentServiceOptions{Jobs: jobs, Workers: workers})

	// The reconciler expired the worker after auth resolved its token. No
	// job may be bound to the deleted row.
	workers.EXPECT().Touch(gomock.Any(), "tok-1", gomock.Any()).Return(false, nil)
	jobs.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Claim(context.Background(), claimWorker(), model.CategorySubdomains)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestAssignmentService_Claim_InvalidCategory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	workers := mocks.NewMockWorkerRepository(ctrl)
	jobs.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Times(0)
	svc := MustNewAssignmentService(AssignmentServiceOptions{Jobs: jobs, Workers: workers})

	_, err := svc.Claim(context.Background(), claimWorker(), model.JobCategory("nmap"))
	assert.True(t, apperrors.IsValidation(err))
}

func TestAssignmentService_Claim_NilWorker(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := mocks.NewMockJobRepository(ctrl)
	workers := mocks.NewMockWorkerRepository(ctrl)
	svc := MustNewAssignmentService(AssignmentServiceOptions{Jobs: jobs, Workers: workers})

	_, err := svc.Claim(context.Background(), nil, model.CategorySubdomains)
	assert.True(t, apperrors.IsUnauthorized(err))
}
