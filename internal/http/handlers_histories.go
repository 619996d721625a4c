package httpx

import (
	"net/http"
	"strconv"

	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/service"
)

// JobHistoryHandlers provides HTTP handlers for workflow runs.
type JobHistoryHandlers struct {
	Svc *service.JobService
}

type triggerResponse struct {
	History *model.JobHistory `json:"history"`
	Jobs    []*model.Job      `json:"jobs"`
}

// Trigger starts a workflow run. The request either lists its jobs
// explicitly or names a declared workflow template plus a target.
func (h *JobHistoryHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	var req model.TriggerWorkflowRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	history, jobs, err := h.Svc.TriggerWorkflow(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, triggerResponse{History: history, Jobs: jobs})
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// List returns workflow runs with per-state member counts and derived status.
func (h *JobHistoryHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := model.JobHistoryListOptions{
		Limit:  parseIntQuery(r, "limit", defaultHistoryLimit),
		Offset: parseIntQuery(r, "offset", 0),
		SortBy: model.SortByCreatedAt,
	}
	if opts.Limit < 1 || opts.Limit > maxHistoryLimit {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if sort := model.JobHistorySortField(r.URL.Query().Get("sort_by")); sort.Valid() {
		opts.SortBy = sort
	}
	opts.SortDesc = r.URL.Query().Get("order") != "asc"

	histories, err := h.Svc.ListHistories(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, histories)
}

// Detail returns one workflow run with its member jobs.
func (h *JobHistoryHandlers) Detail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Svc.HistoryDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, detail)
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
