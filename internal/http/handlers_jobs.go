package httpx

import (
	"net/http"

	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/service"
)

// JobHandlers provides HTTP handlers for operator-facing job operations.
type JobHandlers struct {
	Svc *service.JobService
}

type jobDetailResponse struct {
	Job       *model.Job           `json:"job"`
	ErrorLogs []*model.JobErrorLog `json:"error_logs"`
}

// Get returns a single job with its accumulated error logs.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	job, logs, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, jobDetailResponse{Job: job, ErrorLogs: logs})
}

// Rerun resets a failed or cancelled job back to pending.
func (h *JobHandlers) Rerun(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Rerun(r.Context(), r.PathValue("id")); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Cancel marks a pending or in-progress job as cancelled.
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Cancel(r.Context(), r.PathValue("id")); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a terminal job. In-progress jobs cannot be deleted.
func (h *JobHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats returns per-state counts for one job category.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	category := model.JobCategory(r.URL.Query().Get("category"))
	stats, err := h.Svc.Stats(r.Context(), category)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
