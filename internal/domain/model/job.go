// Package model defines the core data types for the surface scan-job orchestrator.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobCategory identifies the scan capability a job requires. Workers declare
// the categories they can execute and only claim matching jobs.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobCategory string

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

const (
	// CategorySubdomains covers subdomain enumeration tools.
	CategorySubdomains JobCategory = "subdomains"
	// CategoryPorts covers port scanning tools.
	CategoryPorts JobCategory = "ports"
	// CategoryWeb covers HTTP probing tools.
	CategoryWeb JobCategory = "web"
	// CategoryVulnerabilities covers vulnerability scanning tools.
	CategoryVulnerabilities JobCategory = "vulnerabilities"
	// CategoryScreenshots covers page capture tools.
	CategoryScreenshots JobCategory = "screenshots"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusInProgress indicates a job is bound to a worker.
	JobStatusInProgress JobStatus = "in_progress"
	// JobStatusCompleted indicates a job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job exhausted its attempts.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates an operator cancelled the job.
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrNoJobsAvailable is returned when no pending job matches a claim request.
var ErrNoJobsAvailable = errors.New("no jobs available")

// UnmarshalText implements encoding.TextUnmarshaler for JobCategory to allow env parsing.
func (c *JobCategory) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jc := JobCategory(v)
	if jc.Valid() {
		*c = jc
		return nil
	}
	return fmt.Errorf("invalid JobCategory: %q", v)
}

// Valid returns true if the JobCategory is one of the known capabilities.
func (c JobCategory) Valid() bool {
	switch c {
	case CategorySubdomains, CategoryPorts, CategoryWeb, CategoryVulnerabilities, CategoryScreenshots:
		return true
	}
	return false
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal returns true for states that end a job's lifecycle. Failed jobs
// are terminal but remain eligible for recycling back to pending.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransition reports whether the state machine permits moving from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusInProgress || next == JobStatusCancelled
	case JobStatusInProgress:
		return next == JobStatusCompleted || next == JobStatusFailed ||
			next == JobStatusPending || next == JobStatusCancelled
	case JobStatusFailed:
		return next == JobStatusPending
	case JobStatusCancelled:
		return next == JobStatusPending
	case JobStatusCompleted:
		return false
	}
	return false
}

// Job represents one unit of scan work assigned to at most one worker at a time.
type Job struct {
	ID            string          `json:"id"                       db:"id"`
	HistoryID     string          `json:"history_id"               db:"history_id"`
	Category      JobCategory     `json:"category"                 db:"category"`
	Command       string          `json:"command"                  db:"command"`
	Status        JobStatus       `json:"status"                   db:"status"`
	Priority      int             `json:"priority"                 db:"priority"`
	WorkerID      *string         `json:"worker_id,omitempty"      db:"worker_id"`
	AssetID       *string         `json:"asset_id,omitempty"       db:"asset_id"`
	TargetID      *string         `json:"target_id,omitempty"      db:"target_id"`
	RetryCount    int             `json:"retry_count"              db:"retry_count"`
	SaveRawResult bool            `json:"save_raw_result"          db:"save_raw_result"`
	SaveData      bool            `json:"save_data"                db:"save_data"`
	PublishEvent  bool            `json:"publish_event"            db:"publish_event"`
	RawResult     json.RawMessage `json:"raw_result,omitempty"     db:"raw_result"`
	PickedAt      *time.Time      `json:"picked_at,omitempty"      db:"picked_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"   db:"completed_at"`
	CreatedAt     time.Time       `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"               db:"updated_at"`
}

// CreateJobRequest describes one job within a workflow trigger.
type CreateJobRequest struct {
	Category      JobCategory `json:"category"`
	Command       string      `json:"command"`
	Priority      int         `json:"priority,omitempty"`
	AssetID       *string     `json:"asset_id,omitempty"`
	TargetID      *string     `json:"target_id,omitempty"`
	SaveRawResult bool        `json:"save_raw_result,omitempty"`
	SaveData      bool        `json:"save_data,omitempty"`
	PublishEvent  bool        `json:"publish_event,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Category.Valid() {
		return errors.New("invalid job category")
	}
	if strings.TrimSpace(r.Command) == "" {
		return errors.New("command is required")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return errors.New("priority must be between 0 and 100")
	}
	return nil
}

// ClaimedJob is the minimal projection returned to a worker on a successful
// claim. Internal bookkeeping fields are never exposed to workers.
type ClaimedJob struct {
	ID       string      `json:"job_id"`
	Category JobCategory `json:"category"`
	Command  string      `json:"command"`
}

// JobStats counts jobs per lifecycle state for a capability class.
type JobStats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}
