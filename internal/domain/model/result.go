package model

import (
	"fmt"
	"strings"
)

// ResultRef is an opaque pointer to a worker's raw result payload in the
// external blob store, in "<bucket>/<path>" form.
type ResultRef struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// ParseResultRef splits a "<bucket>/<path>" reference. The path component may
// itself contain slashes.
func ParseResultRef(ref string) (ResultRef, error) {
	bucket, path, ok := strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || bucket == "" || path == "" {
		return ResultRef{}, fmt.Errorf("invalid result ref %q: want <bucket>/<path>", ref)
	}
	return ResultRef{Bucket: bucket, Path: path}, nil
}

// String renders the canonical "<bucket>/<path>" form.
func (r ResultRef) String() string {
	return r.Bucket + "/" + r.Path
}

// ResultEnvelope is the payload shape workers upload to the blob store.
// Error=true means the scan tool itself failed; Raw then carries its stderr.
// An empty Raw with Error=false is a legitimate outcome: the tool ran and
// found nothing.
type ResultEnvelope struct {
	Error bool   `json:"error"`
	Raw   string `json:"raw"`
}

// DiscoveredAsset is one normalized asset extracted from tool output.
type DiscoveredAsset struct {
	Value    string            `json:"value"`
	Kind     string            `json:"kind"` // domain, host_port, url, screenshot
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Finding is one normalized vulnerability extracted from tool output.
type Finding struct {
	Name        string            `json:"name"`
	Severity    string            `json:"severity"`
	Host        string            `json:"host"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ParsedResult is the normalized form handed to the data-sync collaborator.
type ParsedResult struct {
	Category JobCategory       `json:"category"`
	Assets   []DiscoveredAsset `json:"assets,omitempty"`
	Findings []Finding         `json:"findings,omitempty"`
}

// Empty reports whether parsing produced no usable data.
func (p *ParsedResult) Empty() bool {
	return p == nil || (len(p.Assets) == 0 && len(p.Findings) == 0)
}

// JobContext carries the job fields the data-sync collaborator needs to
// attribute persisted data.
type JobContext struct {
	JobID     string      `json:"job_id"`
	HistoryID string      `json:"history_id"`
	Category  JobCategory `json:"category"`
	AssetID   *string     `json:"asset_id,omitempty"`
	TargetID  *string     `json:"target_id,omitempty"`
}
