package model

import (
	"errors"
	"strings"
	"time"
)

// JobHistory groups the batch of jobs created by one workflow trigger against
// one target. Aggregate status is derived from member jobs, never stored.
type JobHistory struct {
	ID           string    `json:"id"            db:"id"`
	WorkflowName string    `json:"workflow_name" db:"workflow_name"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// JobHistoryCounts holds the member-job status counts used to derive the
// aggregate status of a history.
type JobHistoryCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// AggregateStatus derives the history-level status shown to operators.
// Precedence is part of the API contract: failed wins over everything,
// then in_progress, then pending; an empty or fully-finished batch reads
// as completed.
func (c JobHistoryCounts) AggregateStatus() JobStatus {
	switch {
	case c.Failed > 0:
		return JobStatusFailed
	case c.InProgress > 0:
		return JobStatusInProgress
	case c.Pending > 0:
		return JobStatusPending
	default:
		return JobStatusCompleted
	}
}

// JobHistoryWithCounts pairs a history row with its derived counts for list views.
type JobHistoryWithCounts struct {
	JobHistory
	Counts JobHistoryCounts `json:"counts"`
	Status JobStatus        `json:"status"`
}

// JobHistoryDetail is the drill-in view: the history plus its member jobs.
type JobHistoryDetail struct {
	JobHistoryWithCounts
	Jobs []*Job `json:"jobs"`
}

// TriggerWorkflowRequest creates a history and its member jobs in one call.
// Jobs may be given explicitly, or left empty with a Target so the service
// expands the named workflow template.
type TriggerWorkflowRequest struct {
	WorkflowName string              `json:"workflow_name"`
	Target       string              `json:"target,omitempty"`
	Jobs         []*CreateJobRequest `json:"jobs,omitempty"`
}

// Validate validates the TriggerWorkflowRequest fields.
func (r *TriggerWorkflowRequest) Validate() error {
	if strings.TrimSpace(r.WorkflowName) == "" {
		return errors.New("workflow name is required")
	}
	if len(r.Jobs) == 0 {
		return errors.New("at least one job is required")
	}
	for _, j := range r.Jobs {
		if j == nil {
			return errors.New("job request must not be nil")
		}
		if err := j.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// JobHistorySortField enumerates the sortable columns for history listings.
type JobHistorySortField string

const (
	// SortByCreatedAt sorts histories by creation time.
	SortByCreatedAt JobHistorySortField = "created_at"
	// SortByWorkflowName sorts histories by workflow name.
	SortByWorkflowName JobHistorySortField = "workflow_name"
)

// Valid returns true if the sort field is supported.
func (f JobHistorySortField) Valid() bool {
	return f == SortByCreatedAt || f == SortByWorkflowName
}

// JobHistoryListOptions controls pagination and ordering of history listings.
type JobHistoryListOptions struct {
	Limit    int
	Offset   int
	SortBy   JobHistorySortField
	SortDesc bool
}
