package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCategory_Valid(t *testing.T) {
	assert.True(t, CategorySubdomains.Valid())
	assert.True(t, CategoryPorts.Valid())
	assert.True(t, CategoryWeb.Valid())
	assert.True(t, CategoryVulnerabilities.Valid())
	assert.True(t, CategoryScreenshots.Valid())
	assert.False(t, JobCategory("unknown").Valid())
	assert.False(t, JobCategory("").Valid())
}

func TestJobCategory_UnmarshalText(t *testing.T) {
	var c JobCategory
	require.NoError(t, c.UnmarshalText([]byte("  Ports ")))
	assert.Equal(t, CategoryPorts, c)

	err := c.UnmarshalText([]byte("nmap"))
	require.Error(t, err)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusInProgress.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"pending to in_progress", JobStatusPending, JobStatusInProgress, true},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, true},
		{"pending to completed", JobStatusPending, JobStatusCompleted, false},
		{"in_progress to completed", JobStatusInProgress, JobStatusCompleted, true},
		{"in_progress to failed", JobStatusInProgress, JobStatusFailed, true},
		{"in_progress to cancelled", JobStatusInProgress, JobStatusCancelled, true},
		{"in_progress released to pending", JobStatusInProgress, JobStatusPending, true},
		{"failed recycled to pending", JobStatusFailed, JobStatusPending, true},
		{"failed to completed", JobStatusFailed, JobStatusCompleted, false},
		{"cancelled rerun to pending", JobStatusCancelled, JobStatusPending, true},
		{"completed is final", JobStatusCompleted, JobStatusPending, false},
		{"completed to cancelled", JobStatusCompleted, JobStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCreateJobRequest_Validate(t *testing.T) {
	valid := &CreateJobRequest{
		Category: CategorySubdomains,
		Command:  "subfinder -d example.com -silent",
		Priority: 50,
	}
	assert.NoError(t, valid.Validate())

	badCategory := &CreateJobRequest{Category: "nmap", Command: "nmap"}
	assert.Error(t, badCategory.Validate())

	blankCommand := &CreateJobRequest{Category: CategoryPorts, Command: "   "}
	assert.Error(t, blankCommand.Validate())

	badPriority := &CreateJobRequest{Category: CategoryPorts, Command: "naabu", Priority: 101}
	assert.Error(t, badPriority.Validate())
}
