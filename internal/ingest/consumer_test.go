package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/surfaceops/surface-api/internal/blob"
	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/mocks"
)

type consumerHarness struct {
	consumer  *Consumer
	queue     *mocks.MockResultQueue
	blobs     *mocks.MockBlobStore
	jobs      *mocks.MockJobRepository
	histories *mocks.MockJobHistoryRepository
	sync      *mocks.MockDataSync
}

func newConsumerHarness(t *testing.T, ctrl *gomock.Controller) *consumerHarness {
	t.Helper()
	h := &consumerHarness{
		queue:     mocks.NewMockResultQueue(ctrl),
		blobs:     mocks.NewMockBlobStore(ctrl),
		jobs:      mocks.NewMockJobRepository(ctrl),
		histories: mocks.NewMockJobHistoryRepository(ctrl),
		sync:      mocks.NewMockDataSync(ctrl),
	}
	h.consumer = MustNewConsumer(ConsumerOptions{
		Queue:     h.queue,
		Blobs:     h.blobs,
		Jobs:      h.jobs,
		Histories: h.histories,
		Sync:      h.sync,
		Workflows: map[string][]model.WorkflowStep{
			"surface-discovery": {
				{Category: model.CategorySubdomains, Command: "subfinder -d {target} -silent"},
				{Category: model.CategoryWeb, Command: "httpx -u {asset_id}"},
			},
		},
		MaxAttempts:  3,
		RetryBackoff: 10 * time.Second,
	})
	return h
}

func ownedJob() *model.Job {
	workerID := "w-1"
	assetID := "asset-9"
	return &model.Job{
		ID:        "j-1",
		HistoryID: "h-1",
		Category:  model.CategorySubdomains,
		Command:   "subfinder -d example.com -silent",
		Status:    model.JobStatusInProgress,
		Priority:  50,
		WorkerID:  &workerID,
		AssetID:   &assetID,
		SaveData:  true,
	}
}

func resultMessage(attempt int) *core.ResultMessage {
	return &core.ResultMessage{
		JobID:     "j-1",
		WorkerID:  "w-1",
		ResultRef: "scan-results/ws-1/j-1.json",
		Attempt:   attempt,
	}
}

func envelopeBytes(t *testing.T, envelope model.ResultEnvelope) []byte {
	t.Helper()
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	return raw
}

func TestConsumer_Process_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	job := ownedJob()
	msg := resultMessage(0)
	raw := envelopeBytes(t, model.ResultEnvelope{Raw: "a.example.com\nb.example.com\n"})
	ref := model.ResultRef{Bucket: "scan-results", Path: "ws-1/j-1.json"}

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(job, nil)
	h.blobs.EXPECT().Read(gomock.Any(), ref).Return(raw, nil)
	h.sync.EXPECT().
		Apply(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, jobCtx model.JobContext, parsed *model.ParsedResult) error {
			assert.Equal(t, "j-1", jobCtx.JobID)
			assert.Equal(t, "h-1", jobCtx.HistoryID)
			assert.Len(t, parsed.Assets, 2)
			return nil
		})
	h.jobs.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.CompleteParams) (bool, error) {
			assert.Equal(t, "j-1", params.JobID)
			assert.Equal(t, raw, params.RawResult)
			assert.False(t, params.SaveRaw)
			return true, nil
		})

	// The completed step chains its workflow successor.
	h.histories.EXPECT().GetDetail(gomock.Any(), "h-1").Return(&model.JobHistoryDetail{
		JobHistoryWithCounts: model.JobHistoryWithCounts{
			JobHistory: model.JobHistory{ID: "h-1", WorkflowName: "surface-discovery"},
		},
		Jobs: []*model.Job{job},
	}, nil)
	h.jobs.EXPECT().
		CreateInHistory(gomock.Any(), "h-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.CategoryWeb, req.Category)
			assert.Equal(t, "httpx -u asset-9", req.Command)
			assert.Equal(t, 50, req.Priority)
			return &model.Job{ID: "j-2", Category: model.CategoryWeb}, nil
		})

	h.blobs.EXPECT().Delete(gomock.Any(), ref).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_EmptyResultCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	job := ownedJob()
	msg := resultMessage(0)
	// The tool ran cleanly and found nothing. That is a completed scan, not
	// a contract failure.
	raw := envelopeBytes(t, model.ResultEnvelope{Error: false, Raw: ""})
	ref := model.ResultRef{Bucket: "scan-results", Path: "ws-1/j-1.json"}

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(job, nil)
	h.blobs.EXPECT().Read(gomock.Any(), ref).Return(raw, nil)
	// Nothing parsed means nothing to forward.
	h.sync.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	h.jobs.EXPECT().Fail(gomock.Any(), gomock.Any()).Times(0)
	h.jobs.EXPECT().
		Complete(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.CompleteParams) (bool, error) {
			assert.Equal(t, "j-1", params.JobID)
			assert.Equal(t, raw, params.RawResult)
			return true, nil
		})

	// An empty predecessor still chains the next workflow step.
	h.histories.EXPECT().GetDetail(gomock.Any(), "h-1").Return(&model.JobHistoryDetail{
		JobHistoryWithCounts: model.JobHistoryWithCounts{
			JobHistory: model.JobHistory{ID: "h-1", WorkflowName: "surface-discovery"},
		},
		Jobs: []*model.Job{job},
	}, nil)
	h.jobs.EXPECT().
		CreateInHistory(gomock.Any(), "h-1", gomock.Any()).
		Return(&model.Job{ID: "j-2", Category: model.CategoryWeb}, nil)

	h.blobs.EXPECT().Delete(gomock.Any(), ref).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_SuccessorAlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	job := ownedJob()
	job.SaveData = false
	msg := resultMessage(0)
	raw := envelopeBytes(t, model.ResultEnvelope{Raw: "a.example.com\n"})

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(job, nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return(raw, nil)
	h.jobs.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(true, nil)
	h.histories.EXPECT().GetDetail(gomock.Any(), "h-1").Return(&model.JobHistoryDetail{
		JobHistoryWithCounts: model.JobHistoryWithCounts{
			JobHistory: model.JobHistory{ID: "h-1", WorkflowName: "surface-discovery"},
		},
		Jobs: []*model.Job{
			job,
			{ID: "j-2", Category: model.CategoryWeb},
		},
	}, nil)
	h.jobs.EXPECT().CreateInHistory(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_ToolError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)
	raw := envelopeBytes(t, model.ResultEnvelope{Error: true, Raw: "dial tcp: connection refused"})

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(ownedJob(), nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return(raw, nil)
	h.jobs.EXPECT().
		Fail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.FailParams) (bool, error) {
			assert.Equal(t, model.ErrorKindTool, params.Kind)
			assert.Equal(t, "dial tcp: connection refused", params.Message)
			return true, nil
		})
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_StaleOwnership(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)
	other := "w-2"
	job := ownedJob()
	job.WorkerID = &other

	// Report from a worker that no longer owns the job is discarded without
	// touching job state.
	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(job, nil)
	h.jobs.EXPECT().Complete(gomock.Any(), gomock.Any()).Times(0)
	h.jobs.EXPECT().Fail(gomock.Any(), gomock.Any()).Times(0)
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_CancelledJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)
	job := ownedJob()
	job.Status = model.JobStatusCancelled

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(job, nil)
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_JobGone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(nil, data.ErrJobNotFound)
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_MissingBlobIsContractError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(ownedJob(), nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, blob.ErrBlobNotFound)
	h.jobs.EXPECT().
		Fail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.FailParams) (bool, error) {
			assert.Equal(t, model.ErrorKindContract, params.Kind)
			assert.Contains(t, params.Message, "result blob missing")
			return true, nil
		})
	// No blob to delete when the blob itself was the problem.
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)
	h.queue.EXPECT().Retry(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_MalformedEnvelopeIsContractError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(ownedJob(), nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return([]byte("{not json"), nil)
	h.jobs.EXPECT().
		Fail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.FailParams) (bool, error) {
			assert.Equal(t, model.ErrorKindContract, params.Kind)
			return true, nil
		})
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_TransientErrorRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(0)

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(ownedJob(), nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, errors.New("s3 timeout"))
	h.queue.EXPECT().Retry(gomock.Any(), msg, 10*time.Second).Return(nil)
	h.jobs.EXPECT().Fail(gomock.Any(), gomock.Any()).Times(0)
	h.queue.EXPECT().DeadLetter(gomock.Any(), gomock.Any()).Times(0)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_ExhaustedAttemptsDeadLetter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	msg := resultMessage(2) // third attempt with MaxAttempts=3

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(ownedJob(), nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, errors.New("s3 timeout"))
	h.jobs.EXPECT().
		Fail(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.FailParams) (bool, error) {
			assert.Equal(t, model.ErrorKindPipeline, params.Kind)
			assert.Contains(t, params.Message, "exhausted after 3 attempts")
			return true, nil
		})
	h.queue.EXPECT().DeadLetter(gomock.Any(), msg).Return(nil)
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Retry(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Process_CancelledDuringCompletion(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)
	job := ownedJob()
	job.SaveData = false
	msg := resultMessage(0)
	raw := envelopeBytes(t, model.ResultEnvelope{Raw: "a.example.com\n"})

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(job, nil)
	h.blobs.EXPECT().Read(gomock.Any(), gomock.Any()).Return(raw, nil)
	h.jobs.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(false, nil)
	// The lost race means no successor is chained.
	h.histories.EXPECT().GetDetail(gomock.Any(), gomock.Any()).Times(0)
	h.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil)
	h.queue.EXPECT().Ack(gomock.Any(), msg).Return(nil)

	h.consumer.process(context.Background(), msg)
}

func TestConsumer_Backoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newConsumerHarness(t, ctrl)

	assert.Equal(t, 10*time.Second, h.consumer.backoff(0))
	assert.Equal(t, 20*time.Second, h.consumer.backoff(1))
	assert.Equal(t, 40*time.Second, h.consumer.backoff(2))
	assert.Equal(t, maxBackoff, h.consumer.backoff(20))
}

func TestNewConsumer_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := NewConsumer(ConsumerOptions{})
	assert.Error(t, err)

	_, err = NewConsumer(ConsumerOptions{
		Queue: mocks.NewMockResultQueue(ctrl),
		Blobs: mocks.NewMockBlobStore(ctrl),
		Jobs:  mocks.NewMockJobRepository(ctrl),
	})
	assert.Error(t, err)
}
