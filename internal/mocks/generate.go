// Package mocks provides mock implementations for testing the surface-api job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the repository and port interfaces in internal/core. The mocks are generated
// via go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Job queue persistence.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/surfaceops/surface-api/internal/core JobRepository

// Workflow run listings.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_history_repository_mock.go github.com/surfaceops/surface-api/internal/core JobHistoryRepository

// Worker registry.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=worker_repository_mock.go github.com/surfaceops/surface-api/internal/core WorkerRepository

// Provider credential lookup.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=api_key_repository_mock.go github.com/surfaceops/surface-api/internal/core APIKeyRepository

// Reconciliation sweeps.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reconcile_repository_mock.go github.com/surfaceops/surface-api/internal/core ReconcileRepository

// Outbox rows.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=outbox_repository_mock.go github.com/surfaceops/surface-api/internal/core OutboxRepository

// Job error diagnostics.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=error_log_repository_mock.go github.com/surfaceops/surface-api/internal/core ErrorLogRepository

// Ingest queue, blob storage, pub/sub, and data forwarding ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=result_queue_mock.go github.com/surfaceops/surface-api/internal/core ResultQueue
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=blob_store_mock.go github.com/surfaceops/surface-api/internal/core BlobStore
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=publisher_mock.go github.com/surfaceops/surface-api/internal/core Publisher
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=data_sync_mock.go github.com/surfaceops/surface-api/internal/core DataSync
