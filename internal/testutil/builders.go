package testutil

import (
	"time"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest
// values for tests.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Category: model.CategorySubdomains,
			Command:  "subfinder -d example.com -silent",
			Priority: 50,
		},
	}
}

// WithCategory sets the job category.
func (b *JobRequestBuilder) WithCategory(category model.JobCategory) *JobRequestBuilder {
	b.req.Category = category
	return b
}

// WithCommand sets the tool command line.
func (b *JobRequestBuilder) WithCommand(command string) *JobRequestBuilder {
	b.req.Command = command
	return b
}

// WithPriority sets the job priority.
func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithAssetID sets the source asset.
func (b *JobRequestBuilder) WithAssetID(assetID string) *JobRequestBuilder {
	b.req.AssetID = &assetID
	return b
}

// WithTargetID sets the owning target.
func (b *JobRequestBuilder) WithTargetID(targetID string) *JobRequestBuilder {
	b.req.TargetID = &targetID
	return b
}

// WithSaveData enables structured-data forwarding.
func (b *JobRequestBuilder) WithSaveData() *JobRequestBuilder {
	b.req.SaveData = true
	return b
}

// WithSaveRawResult enables raw-result retention.
func (b *JobRequestBuilder) WithSaveRawResult() *JobRequestBuilder {
	b.req.SaveRawResult = true
	return b
}

// WithPublishEvent enables the completion event.
func (b *JobRequestBuilder) WithPublishEvent() *JobRequestBuilder {
	b.req.PublishEvent = true
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// TriggerBuilder provides a fluent interface for building workflow triggers.
type TriggerBuilder struct {
	req *model.TriggerWorkflowRequest
}

// NewTrigger creates a TriggerBuilder with one default job.
func NewTrigger() *TriggerBuilder {
	return &TriggerBuilder{
		req: &model.TriggerWorkflowRequest{
			WorkflowName: "surface-discovery",
			Jobs:         []*model.CreateJobRequest{NewJobRequest().Build()},
		},
	}
}

// WithWorkflowName sets the workflow name.
func (b *TriggerBuilder) WithWorkflowName(name string) *TriggerBuilder {
	b.req.WorkflowName = name
	return b
}

// WithTarget sets the template target and clears explicit jobs.
func (b *TriggerBuilder) WithTarget(target string) *TriggerBuilder {
	b.req.Target = target
	b.req.Jobs = nil
	return b
}

// WithJobs replaces the explicit job list.
func (b *TriggerBuilder) WithJobs(jobs ...*model.CreateJobRequest) *TriggerBuilder {
	b.req.Jobs = jobs
	return b
}

// Build returns the constructed TriggerWorkflowRequest.
func (b *TriggerBuilder) Build() *model.TriggerWorkflowRequest {
	return b.req
}

// NewWorker returns a workspace worker suitable for tests.
func NewWorker(id, token string) *model.Worker {
	tool := "subfinder"
	workspace := "ws-test"
	return &model.Worker{
		ID:          id,
		Token:       token,
		Type:        model.WorkerTypeProvider,
		Scope:       model.WorkerScopeWorkspace,
		WorkspaceID: &workspace,
		Tool:        &tool,
		LastSeenAt:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
}
