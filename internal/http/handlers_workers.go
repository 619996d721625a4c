package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/service"
)

// WorkerHandlers provides HTTP handlers for the worker protocol: join,
// heartbeat, claim, and result reporting.
type WorkerHandlers struct {
	Workers    *service.WorkerService
	Assignment *service.AssignmentService
	Reports    *service.ReportService
}

// Join exchanges a provisioning credential for a fresh worker identity and
// bearer token. Every call creates a new worker; there is no re-join.
func (h *WorkerHandlers) Join(w http.ResponseWriter, r *http.Request) {
	var req model.JoinRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Workers.Join(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Heartbeat refreshes the authenticated worker's liveness timestamp.
func (h *WorkerHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	worker := WorkerFromContext(r.Context())
	if worker == nil {
		writeMissingWorker(w)
		return
	}

	if err := h.Workers.Heartbeat(r.Context(), worker.Token, time.Now().UTC()); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClaimNext hands the oldest pending job of the requested category to the
// calling worker. Responds 204 when no work is available.
func (h *WorkerHandlers) ClaimNext(w http.ResponseWriter, r *http.Request) {
	worker := WorkerFromContext(r.Context())
	if worker == nil {
		writeMissingWorker(w)
		return
	}

	category := model.JobCategory(r.URL.Query().Get("category"))
	job, err := h.Assignment.Claim(r.Context(), worker, category)
	if errors.Is(err, model.ErrNoJobsAvailable) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

type reportRequest struct {
	ResultRef string `json:"result_ref"`
}

// ReportResult accepts a worker's pointer to an uploaded result blob and
// queues it for ingestion. The heavy parsing happens off the request path,
// so success is 202.
func (h *WorkerHandlers) ReportResult(w http.ResponseWriter, r *http.Request) {
	worker := WorkerFromContext(r.Context())
	if worker == nil {
		writeMissingWorker(w)
		return
	}

	jobID := r.PathValue("id")
	var req reportRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Reports.Accept(r.Context(), worker, jobID, req.ResultRef); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// List returns registered workers with their in-progress job counts.
func (h *WorkerHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := model.WorkerListOptions{}
	if ws := r.URL.Query().Get("workspace_id"); ws != "" {
		opts.WorkspaceID = &ws
	}

	workers, err := h.Workers.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, workers)
}

func writeMissingWorker(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("worker authentication required"),
	})
}
