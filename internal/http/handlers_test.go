package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/surfaceops/surface-api/internal/core"
	"github.com/surfaceops/surface-api/internal/data"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/mocks"
	"github.com/surfaceops/surface-api/internal/service"
	"github.com/surfaceops/surface-api/internal/testutil"
)

const testWorkerToken = "tok-1"

type routerHarness struct {
	router    http.Handler
	jobs      *mocks.MockJobRepository
	histories *mocks.MockJobHistoryRepository
	workers   *mocks.MockWorkerRepository
	keys      *mocks.MockAPIKeyRepository
	queue     *mocks.MockResultQueue
}

func newRouterHarness(t *testing.T, ctrl *gomock.Controller) *routerHarness {
	t.Helper()
	h := &routerHarness{
		jobs:      mocks.NewMockJobRepository(ctrl),
		histories: mocks.NewMockJobHistoryRepository(ctrl),
		workers:   mocks.NewMockWorkerRepository(ctrl),
		keys:      mocks.NewMockAPIKeyRepository(ctrl),
		queue:     mocks.NewMockResultQueue(ctrl),
	}

	jobSvc := service.MustNewJobService(service.JobServiceOptions{
		Jobs:      h.jobs,
		Histories: h.histories,
	})
	workerSvc := service.MustNewWorkerService(service.WorkerServiceOptions{
		Workers:     h.workers,
		Keys:        h.keys,
		CloudAPIKey: "cloud-secret",
	})
	assignmentSvc := service.MustNewAssignmentService(service.AssignmentServiceOptions{
		Jobs:    h.jobs,
		Workers: h.workers,
	})
	reportSvc := service.MustNewReportService(service.ReportServiceOptions{
		Jobs:  h.jobs,
		Queue: h.queue,
	})

	h.router = NewRouter(RouterServices{
		Jobs:       jobSvc,
		Workers:    workerSvc,
		Assignment: assignmentSvc,
		Reports:    reportSvc,
	})
	return h
}

// expectAuthedWorker wires the bearer-token resolution RequireWorker performs.
func (h *routerHarness) expectAuthedWorker() *model.Worker {
	worker := testutil.NewWorker("w-1", testWorkerToken)
	h.workers.EXPECT().
		GetByToken(gomock.Any(), testWorkerToken).
		Return(worker, nil)
	return worker
}

func (h *routerHarness) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Join(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.workers.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.CreateWorkerParams) (*model.Worker, error) {
			return &model.Worker{ID: "w-1", Token: params.Token}, nil
		})

	rec := h.do(http.MethodPost, "/api/workers/join",
		`{"api_key":"cloud-secret","tool":"subfinder"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.JoinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "w-1", resp.WorkerID)
	assert.Len(t, resp.Token, 64)
}

func TestRouter_Join_InvalidKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.keys.EXPECT().ListActive(gomock.Any()).Return(nil, nil)
	h.workers.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	rec := h.do(http.MethodPost, "/api/workers/join", `{"api_key":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Join_MalformedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	rec := h.do(http.MethodPost, "/api/workers/join", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestRouter_Heartbeat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	h.workers.EXPECT().Touch(gomock.Any(), testWorkerToken, gomock.Any()).Return(true, nil)

	rec := h.do(http.MethodPost, "/api/workers/heartbeat", "", testWorkerToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_Heartbeat_MissingToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	rec := h.do(http.MethodPost, "/api/workers/heartbeat", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication_required")
}

func TestRouter_Heartbeat_UnknownToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.workers.EXPECT().
		GetByToken(gomock.Any(), "expired").
		Return(nil, data.ErrWorkerNotFound)

	rec := h.do(http.MethodPost, "/api/workers/heartbeat", "", "expired")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ClaimNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	h.workers.EXPECT().Touch(gomock.Any(), testWorkerToken, gomock.Any()).Return(true, nil)
	h.jobs.EXPECT().
		ClaimNext(gomock.Any(), core.ClaimParams{WorkerID: "w-1", Category: model.CategorySubdomains}).
		Return(&model.Job{
			ID:       "j-1",
			Category: model.CategorySubdomains,
			Command:  "subfinder -d example.com -silent",
		}, nil)

	rec := h.do(http.MethodGet, "/api/workers/jobs/next?category=subdomains", "", testWorkerToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var claimed model.ClaimedJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))
	assert.Equal(t, "j-1", claimed.ID)
	assert.Equal(t, "subfinder -d example.com -silent", claimed.Command)
}

func TestRouter_ClaimNext_EmptyQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	h.workers.EXPECT().Touch(gomock.Any(), testWorkerToken, gomock.Any()).Return(true, nil)
	h.jobs.EXPECT().
		ClaimNext(gomock.Any(), gomock.Any()).
		Return(nil, model.ErrNoJobsAvailable)

	rec := h.do(http.MethodGet, "/api/workers/jobs/next?category=subdomains", "", testWorkerToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRouter_ClaimNext_InvalidCategory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()

	rec := h.do(http.MethodGet, "/api/workers/jobs/next?category=bogus", "", testWorkerToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ReportResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	workerID := "w-1"
	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(&model.Job{
		ID:       "j-1",
		Status:   model.JobStatusInProgress,
		WorkerID: &workerID,
	}, nil)
	h.queue.EXPECT().Enqueue(gomock.Any(), core.ResultMessage{
		JobID:     "j-1",
		WorkerID:  "w-1",
		ResultRef: "scan-results/ws-1/j-1.json",
	}).Return(nil)

	rec := h.do(http.MethodPost, "/api/workers/jobs/j-1/result",
		`{"result_ref":"scan-results/ws-1/j-1.json"}`, testWorkerToken)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRouter_ReportResult_UnownedReadsAsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	other := "w-2"
	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(&model.Job{
		ID:       "j-1",
		Status:   model.JobStatusInProgress,
		WorkerID: &other,
	}, nil)
	h.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	rec := h.do(http.MethodPost, "/api/workers/jobs/j-1/result",
		`{"result_ref":"scan-results/ws-1/j-1.json"}`, testWorkerToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ReportResult_CancelledConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	workerID := "w-1"
	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(&model.Job{
		ID:       "j-1",
		Status:   model.JobStatusCancelled,
		WorkerID: &workerID,
	}, nil)

	rec := h.do(http.MethodPost, "/api/workers/jobs/j-1/result",
		`{"result_ref":"scan-results/ws-1/j-1.json"}`, testWorkerToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_ReportResult_InvalidRef(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.expectAuthedWorker()
	h.jobs.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	rec := h.do(http.MethodPost, "/api/workers/jobs/j-1/result",
		`{"result_ref":"no-path"}`, testWorkerToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GetJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.jobs.EXPECT().GetByID(gomock.Any(), "j-1").Return(&model.Job{ID: "j-1"}, nil)

	rec := h.do(http.MethodGet, "/api/jobs/j-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp jobDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "j-1", resp.Job.ID)
}

func TestRouter_GetJob_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.jobs.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)

	rec := h.do(http.MethodGet, "/api/jobs/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestRouter_RerunConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.jobs.EXPECT().Rerun(gomock.Any(), "j-1").Return(false, nil)

	rec := h.do(http.MethodPost, "/api/jobs/j-1/rerun", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_CancelJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.jobs.EXPECT().Cancel(gomock.Any(), "j-1").Return(true, nil)

	rec := h.do(http.MethodPost, "/api/jobs/j-1/cancel", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_JobStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.jobs.EXPECT().
		Stats(gomock.Any(), model.CategoryPorts).
		Return(&model.JobStats{Pending: 2, Completed: 5}, nil)

	rec := h.do(http.MethodGet, "/api/jobs/stats?category=ports", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/jobs/stats?category=bogus", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_TriggerWorkflow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.jobs.EXPECT().
		CreateBatch(gomock.Any(), gomock.Any()).
		Return(&model.JobHistory{ID: "h-1", WorkflowName: "ad-hoc"},
			[]*model.Job{{ID: "j-1"}}, nil)

	rec := h.do(http.MethodPost, "/api/job-histories",
		`{"workflow_name":"ad-hoc","jobs":[{"category":"subdomains","command":"subfinder -d a.com"}]}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "h-1", resp.History.ID)
	require.Len(t, resp.Jobs, 1)
}

func TestRouter_ListHistories_QueryHandling(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	var captured model.JobHistoryListOptions
	h.histories.EXPECT().
		List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, opts model.JobHistoryListOptions) ([]*model.JobHistoryWithCounts, error) {
			captured = opts
			return nil, nil
		})

	// Out-of-range limit falls back to the default; ascending order honored.
	rec := h.do(http.MethodGet, "/api/job-histories?limit=9999&order=asc", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, captured.Limit)
	assert.False(t, captured.SortDesc)
	assert.Equal(t, model.SortByCreatedAt, captured.SortBy)
}

func TestRouter_HistoryDetail_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := newRouterHarness(t, ctrl)

	h.histories.EXPECT().
		GetDetail(gomock.Any(), "missing").
		Return(nil, data.ErrHistoryNotFound)

	rec := h.do(http.MethodGet, "/api/job-histories/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthHandlers(t *testing.T) {
	mr, client := testutil.SetupMiniredis(t)

	handler := &HealthHandlers{Redis: client}

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	mr.Close()
	rec = httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// HEAD carries the status code only.
	rec = httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Body.String())
}
