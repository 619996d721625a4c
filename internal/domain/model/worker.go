package model

import (
	"errors"
	"strings"
	"time"
)

// WorkerType distinguishes first-party workers from provider-supplied ones.
type WorkerType string

// WorkerScope distinguishes workspace-bound workers from global cloud workers.
type WorkerScope string

const (
	// WorkerTypeBuiltIn identifies workers running the bundled toolchain.
	WorkerTypeBuiltIn WorkerType = "built_in"
	// WorkerTypeProvider identifies workers registered by an external provider key.
	WorkerTypeProvider WorkerType = "provider"

	// WorkerScopeWorkspace restricts a worker to one workspace's jobs.
	WorkerScopeWorkspace WorkerScope = "workspace"
	// WorkerScopeCloud marks a globally visible worker.
	WorkerScopeCloud WorkerScope = "cloud"
)

// Valid returns true if the WorkerType is valid.
func (t WorkerType) Valid() bool {
	return t == WorkerTypeBuiltIn || t == WorkerTypeProvider
}

// Valid returns true if the WorkerScope is valid.
func (s WorkerScope) Valid() bool {
	return s == WorkerScopeWorkspace || s == WorkerScopeCloud
}

// Worker is a registry entry for a live worker process. The token is the sole
// credential for heartbeats and job polling; possession of a valid token is
// equivalent to "this worker exists".
type Worker struct {
	ID          string      `json:"id"                     db:"id"`
	Token       string      `json:"-"                      db:"token"`
	Type        WorkerType  `json:"type"                   db:"type"`
	Scope       WorkerScope `json:"scope"                  db:"scope"`
	WorkspaceID *string     `json:"workspace_id,omitempty" db:"workspace_id"`
	Tool        *string     `json:"tool,omitempty"         db:"tool"`
	LastSeenAt  time.Time   `json:"last_seen_at"           db:"last_seen_at"`
	CreatedAt   time.Time   `json:"created_at"             db:"created_at"`
}

// WorkerWithJobCount annotates a worker with its live in-progress job count
// for operator listings.
type WorkerWithJobCount struct {
	Worker
	InProgressJobs int `json:"in_progress_jobs"`
}

// JoinRequest carries the credential a worker presents when joining the fleet.
type JoinRequest struct {
	APIKey string  `json:"api_key"`
	Tool   *string `json:"tool,omitempty"`
}

// Validate validates the JoinRequest fields.
func (r *JoinRequest) Validate() error {
	if strings.TrimSpace(r.APIKey) == "" {
		return errors.New("api key is required")
	}
	return nil
}

// JoinResponse is returned to a worker after a successful join.
type JoinResponse struct {
	WorkerID string `json:"worker_id"`
	Token    string `json:"token"`
}

// WorkerListOptions filters operator worker listings by workspace. Cloud
// scoped workers are always included.
type WorkerListOptions struct {
	WorkspaceID *string
}
