package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	apperrors "github.com/surfaceops/surface-api/internal/errors"
	"github.com/surfaceops/surface-api/internal/mocks"
)

func reportFixture(ctrl *gomock.Controller) (*ReportService, *mocks.MockJobRepository, *mocks.MockResultQueue) {
	jobs := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockResultQueue(ctrl)
	svc := MustNewReportService(ReportServiceOptions{Jobs: jobs, Queue: queue})
	return svc, jobs, queue
}

func ownedInProgressJob(workerID string) *model.Job {
	return &model.Job{
		ID:       "job-1",
		Category: model.CategoryPorts,
		Status:   model.JobStatusInProgress,
		WorkerID: &workerID,
	}
}

func TestReportService_Accept(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, jobs, queue := reportFixture(ctrl)
	worker := &model.Worker{ID: "w-1", Token: "tok-1"}

	jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(ownedInProgressJob("w-1"), nil)
	queue.EXPECT().Enqueue(gomock.Any(), core.ResultMessage{
		JobID:     "job-1",
		WorkerID:  "w-1",
		ResultRef: "scan-results/ws-1/job-1.json",
	}).Return(nil)

	err := svc.Accept(context.Background(), worker, "job-1", "scan-results/ws-1/job-1.json")
	require.NoError(t, err)
}

func TestReportService_Accept_InvalidRef(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, jobs, _ := reportFixture(ctrl)
	jobs.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	err := svc.Accept(context.Background(), &model.Worker{ID: "w-1"}, "job-1", "no-path")
	assert.True(t, apperrors.IsValidation(err))
}

func TestReportService_Accept_UnknownJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, jobs, _ := reportFixture(ctrl)
	jobs.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)

	err := svc.Accept(context.Background(), &model.Worker{ID: "w-1"}, "missing", "bucket/key.json")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReportService_Accept_UnownedJobReadsAsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, jobs, queue := reportFixture(ctrl)
	jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(ownedInProgressJob("w-other"), nil)
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	// 404 instead of 403 so tokens cannot probe for job IDs.
	err := svc.Accept(context.Background(), &model.Worker{ID: "w-1"}, "job-1", "bucket/key.json")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReportService_Accept_WrongState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, jobs, _ := reportFixture(ctrl)
	workerID := "w-1"
	job := &model.Job{ID: "job-1", Status: model.JobStatusCancelled, WorkerID: &workerID}
	jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

	// A cancelled job no longer accepts results: cancel wins.
	err := svc.Accept(context.Background(), &model.Worker{ID: "w-1"}, "job-1", "bucket/key.json")
	assert.True(t, apperrors.IsConflict(err))
}

func TestReportService_Accept_NilWorker(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, _, _ := reportFixture(ctrl)
	err := svc.Accept(context.Background(), nil, "job-1", "bucket/key.json")
	assert.True(t, apperrors.IsUnauthorized(err))
}
