package model

import (
	"encoding/json"
	"time"
)

// OutboxStatus tracks delivery of a job-completion event record.
type OutboxStatus string

const (
	// OutboxStatusPending indicates the entry awaits publication.
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusSent indicates the entry was published.
	OutboxStatusSent OutboxStatus = "sent"
	// OutboxStatusError indicates publication failed terminally.
	OutboxStatusError OutboxStatus = "error"
)

// Valid returns true if the OutboxStatus is valid.
func (s OutboxStatus) Valid() bool {
	return s == OutboxStatusPending || s == OutboxStatusSent || s == OutboxStatusError
}

// OutboxEntry is written in the same transaction as the job state change it
// describes and drained asynchronously by the relay. The ingestion pipeline
// exclusively creates entries; the relay exclusively transitions status.
type OutboxEntry struct {
	ID        string          `json:"id"         db:"id"`
	JobID     string          `json:"job_id"     db:"job_id"`
	Payload   json.RawMessage `json:"payload"    db:"payload"`
	Status    OutboxStatus    `json:"status"     db:"status"`
	Attempts  int             `json:"attempts"   db:"attempts"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// JobCompletedEvent is the payload published for jobs with publish_event set.
// Subscribers deduplicate by job_id: delivery is at-least-once.
type JobCompletedEvent struct {
	JobID       string      `json:"job_id"`
	HistoryID   string      `json:"history_id"`
	Category    JobCategory `json:"category"`
	Status      JobStatus   `json:"status"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Marshal encodes the event for the outbox row.
func (e JobCompletedEvent) Marshal() (json.RawMessage, error) {
	return json.Marshal(e)
}
