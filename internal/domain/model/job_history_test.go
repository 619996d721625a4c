package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobHistoryCounts_AggregateStatus(t *testing.T) {
	tests := []struct {
		name   string
		counts JobHistoryCounts
		want   JobStatus
	}{
		{
			name:   "failed wins over everything",
			counts: JobHistoryCounts{Total: 4, Pending: 1, InProgress: 1, Completed: 1, Failed: 1},
			want:   JobStatusFailed,
		},
		{
			name:   "in_progress wins over pending",
			counts: JobHistoryCounts{Total: 3, Pending: 1, InProgress: 1, Completed: 1},
			want:   JobStatusInProgress,
		},
		{
			name:   "pending wins over completed",
			counts: JobHistoryCounts{Total: 2, Pending: 1, Completed: 1},
			want:   JobStatusPending,
		},
		{
			name:   "all completed",
			counts: JobHistoryCounts{Total: 2, Completed: 2},
			want:   JobStatusCompleted,
		},
		{
			name:   "cancelled members read as completed",
			counts: JobHistoryCounts{Total: 2, Completed: 1, Cancelled: 1},
			want:   JobStatusCompleted,
		},
		{
			name:   "empty batch reads as completed",
			counts: JobHistoryCounts{},
			want:   JobStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counts.AggregateStatus())
		})
	}
}

func TestTriggerWorkflowRequest_Validate(t *testing.T) {
	valid := &TriggerWorkflowRequest{
		WorkflowName: "surface-discovery",
		Jobs: []*CreateJobRequest{
			{Category: CategorySubdomains, Command: "subfinder -d example.com"},
		},
	}
	assert.NoError(t, valid.Validate())

	noName := &TriggerWorkflowRequest{
		Jobs: []*CreateJobRequest{{Category: CategoryPorts, Command: "naabu"}},
	}
	assert.Error(t, noName.Validate())

	noJobs := &TriggerWorkflowRequest{WorkflowName: "surface-discovery"}
	assert.Error(t, noJobs.Validate())

	badJob := &TriggerWorkflowRequest{
		WorkflowName: "surface-discovery",
		Jobs:         []*CreateJobRequest{{Category: "bogus", Command: "x"}},
	}
	assert.Error(t, badJob.Validate())
}

func TestJobHistorySortField_Valid(t *testing.T) {
	assert.True(t, SortByCreatedAt.Valid())
	assert.True(t, SortByWorkflowName.Valid())
	assert.False(t, JobHistorySortField("priority").Valid())
}
