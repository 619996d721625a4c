// Package core defines the ports between the service layer and its
// collaborators: repositories, the ingest queue, the blob store, the
// pub/sub channel, and the data-sync consumer.
package core

import (
	"context"
	"time"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// Service implementations depend on these interfaces, never on the concrete
// data/queue/blob packages.

// ClaimParams identifies the worker asking for work and the capability it offers.
type ClaimParams struct {
	WorkerID string
	Category model.JobCategory
}

// CompleteParams finalizes a successful job. Whether an outbox row is written
// in the same transaction is governed by the job row's publish_event flag,
// not by the caller.
type CompleteParams struct {
	JobID       string
	RawResult   []byte
	SaveRaw     bool
	CompletedAt time.Time
}

// FailParams finalizes a failed job and appends its diagnostic record.
type FailParams struct {
	JobID   string
	Kind    model.ErrorKind
	Message string
	Payload []byte
}

// JobRepository defines job data operations.
type JobRepository interface {
	CreateBatch(ctx context.Context, req *model.TriggerWorkflowRequest) (*model.JobHistory, []*model.Job, error)
	CreateInHistory(ctx context.Context, historyID string, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ClaimNext(ctx context.Context, params ClaimParams) (*model.Job, error)
	Complete(ctx context.Context, params CompleteParams) (bool, error)
	Fail(ctx context.Context, params FailParams) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Rerun(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, category model.JobCategory) (*model.JobStats, error)
}

// JobHistoryRepository defines history listing and drill-in operations.
type JobHistoryRepository interface {
	List(ctx context.Context, opts model.JobHistoryListOptions) ([]*model.JobHistoryWithCounts, error)
	GetDetail(ctx context.Context, id string) (*model.JobHistoryDetail, error)
}

// CreateWorkerParams carries the registry fields derived from a join credential.
type CreateWorkerParams struct {
	Token       string
	Type        model.WorkerType
	Scope       model.WorkerScope
	WorkspaceID *string
	Tool        *string
}

// WorkerRepository defines worker registry operations.
type WorkerRepository interface {
	Create(ctx context.Context, params CreateWorkerParams) (*model.Worker, error)
	GetByToken(ctx context.Context, token string) (*model.Worker, error)
	Touch(ctx context.Context, token string, seenAt time.Time) (bool, error)
	List(ctx context.Context, opts model.WorkerListOptions) ([]*model.WorkerWithJobCount, error)
}

// APIKeyRecord is a stored provider credential: a bcrypt hash plus the
// registry attributes granted to workers joining with it.
type APIKeyRecord struct {
	ID          string
	KeyHash     string
	Kind        model.WorkerType
	Scope       model.WorkerScope
	WorkspaceID *string
}

// APIKeyRepository looks up provider credentials presented at join time.
type APIKeyRepository interface {
	ListActive(ctx context.Context) ([]*APIKeyRecord, error)
}

// ReconcileRepository defines the sweep operations run by the liveness reconciler.
type ReconcileRepository interface {
	// ExpireStaleWorkers transactionally reverts each stale worker's
	// in_progress jobs to pending and deletes the worker row. Returns
	// (workers removed, jobs released).
	ExpireStaleWorkers(ctx context.Context, deadline time.Time) (int64, int64, error)
	// ReleaseOrphanedJobs reverts in_progress jobs whose worker row no
	// longer exists. Defensive sweep for races around worker deletion.
	ReleaseOrphanedJobs(ctx context.Context) (int64, error)
	// RecycleFailedJobs moves failed jobs with retry_count below the ceiling
	// back to pending, incrementing retry_count.
	RecycleFailedJobs(ctx context.Context, maxRecycles int) (int64, error)
}

// OutboxRepository defines the relay side of the transactional outbox.
type OutboxRepository interface {
	PendingBatch(ctx context.Context, limit int) ([]*model.OutboxEntry, error)
	MarkSent(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string, terminal bool) error
}

// ErrorLogRepository defines append-only job diagnostics access.
type ErrorLogRepository interface {
	ListByJob(ctx context.Context, jobID string) ([]*model.JobErrorLog, error)
}

// ResultMessage is one result-report travelling through the ingest queue.
type ResultMessage struct {
	JobID     string `json:"job_id"`
	WorkerID  string `json:"worker_id"`
	ResultRef string `json:"result_ref"`
	Attempt   int    `json:"attempt"`
}

// ResultQueue is the asynchronous path between the report endpoint and the
// ingestion pipeline.
type ResultQueue interface {
	Enqueue(ctx context.Context, msg ResultMessage) error
	// Dequeue pops one message and places it in-flight under a visibility
	// timeout. Returns (nil, nil) when the queue is empty.
	Dequeue(ctx context.Context) (*ResultMessage, error)
	Ack(ctx context.Context, msg *ResultMessage) error
	// Retry re-schedules the message after the given delay with its attempt
	// counter incremented.
	Retry(ctx context.Context, msg *ResultMessage, delay time.Duration) error
	DeadLetter(ctx context.Context, msg *ResultMessage) error
	// RequeueExpired returns in-flight messages whose visibility timeout
	// lapsed to the ready queue.
	RequeueExpired(ctx context.Context, now time.Time) (int64, error)
}

// BlobStore abstracts the external result blob storage. The ingestion
// pipeline owns a blob from first read until deletion.
type BlobStore interface {
	Read(ctx context.Context, ref model.ResultRef) ([]byte, error)
	Delete(ctx context.Context, ref model.ResultRef) error
}

// Publisher abstracts the pub/sub channel drained by the outbox relay.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// DataSync hands normalized scan output to the console's persistence layer.
type DataSync interface {
	Apply(ctx context.Context, jobCtx model.JobContext, result *model.ParsedResult) error
}
