package httpx

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/surfaceops/surface-api/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Jobs       *service.JobService
	Workers    *service.WorkerService
	Assignment *service.AssignmentService
	Reports    *service.ReportService
	DB         *sql.DB
	Redis      *redis.Client
	Logger     *slog.Logger
}

// NewRouter wires the API routes. Worker-protocol routes sit behind bearer
// auth; operator routes and /healthz do not (an authenticating proxy fronts
// them in deployment).
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	workerHandlers := &WorkerHandlers{
		Workers:    services.Workers,
		Assignment: services.Assignment,
		Reports:    services.Reports,
	}
	jobHandlers := &JobHandlers{Svc: services.Jobs}
	historyHandlers := &JobHistoryHandlers{Svc: services.Jobs}
	healthHandlers := &HealthHandlers{DB: services.DB, Redis: services.Redis}

	requireWorker := RequireWorker(services.Workers)

	mux.Handle("POST /api/workers/join", http.HandlerFunc(workerHandlers.Join))
	mux.Handle("POST /api/workers/heartbeat", requireWorker(http.HandlerFunc(workerHandlers.Heartbeat)))
	mux.Handle("GET /api/workers/jobs/next", requireWorker(http.HandlerFunc(workerHandlers.ClaimNext)))
	mux.Handle("POST /api/workers/jobs/{id}/result", requireWorker(http.HandlerFunc(workerHandlers.ReportResult)))
	mux.Handle("GET /api/workers", http.HandlerFunc(workerHandlers.List))

	mux.Handle("GET /api/jobs/{id}", http.HandlerFunc(jobHandlers.Get))
	mux.Handle("POST /api/jobs/{id}/rerun", http.HandlerFunc(jobHandlers.Rerun))
	mux.Handle("POST /api/jobs/{id}/cancel", http.HandlerFunc(jobHandlers.Cancel))
	mux.Handle("DELETE /api/jobs/{id}", http.HandlerFunc(jobHandlers.Delete))
	mux.Handle("GET /api/jobs/stats", http.HandlerFunc(jobHandlers.Stats))

	mux.Handle("GET /api/job-histories", http.HandlerFunc(historyHandlers.List))
	mux.Handle("POST /api/job-histories", http.HandlerFunc(historyHandlers.Trigger))
	mux.Handle("GET /api/job-histories/{id}", http.HandlerFunc(historyHandlers.Detail))

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandlers.Health))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandlers.Health))

	var handler http.Handler = mux
	if services.Logger != nil {
		handler = Logging(services.Logger)(handler)
		handler = Recover(services.Logger)(handler)
	}
	return handler
}
