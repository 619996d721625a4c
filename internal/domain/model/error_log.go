package model

import (
	"encoding/json"
	"time"
)

// ErrorKind classifies a job failure so operators can tell tool failures
// apart from pipeline bugs and malformed data.
type ErrorKind string

const (
	// ErrorKindTool marks failures reported by the scan tool itself.
	ErrorKindTool ErrorKind = "tool_error"
	// ErrorKindPipeline marks transient orchestrator-side failures that exhausted retries.
	ErrorKindPipeline ErrorKind = "pipeline_error"
	// ErrorKindContract marks non-retryable failures: unknown parser, malformed payload.
	ErrorKindContract ErrorKind = "contract_error"
)

// Valid returns true if the ErrorKind is valid.
func (k ErrorKind) Valid() bool {
	return k == ErrorKindTool || k == ErrorKindPipeline || k == ErrorKindContract
}

// JobErrorLog is an append-only diagnostic record attached to a job.
// Entries are only ever inserted, never updated.
type JobErrorLog struct {
	ID        string          `json:"id"                db:"id"`
	JobID     string          `json:"job_id"            db:"job_id"`
	Kind      ErrorKind       `json:"kind"              db:"kind"`
	Message   string          `json:"message"           db:"message"`
	Payload   json.RawMessage `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time       `json:"created_at"        db:"created_at"`
}
