package model

import "strings"

// WorkflowStep is one capability step in a named workflow chain. The command
// template may reference {asset_id}, {target_id}, and {prior_command}; the
// chainer substitutes values from the completed predecessor job.
type WorkflowStep struct {
	Category JobCategory
	Command  string
}

// NextStep returns the step following the given category in the named chain,
// or nil when the category is the last step or the chain is unknown.
func NextStep(workflows map[string][]WorkflowStep, name string, after JobCategory) *WorkflowStep {
	steps, ok := workflows[name]
	if !ok {
		return nil
	}
	for i, step := range steps {
		if step.Category == after && i+1 < len(steps) {
			next := steps[i+1]
			return &next
		}
	}
	return nil
}

// RenderTarget substitutes the scan target into a step's command template.
// Used when a workflow is first triggered and no predecessor job exists.
func RenderTarget(template, target string) string {
	return strings.ReplaceAll(template, "{target}", target)
}

// RenderCommand substitutes predecessor fields into a step's command template.
func RenderCommand(template string, prior *Job) string {
	out := template
	if prior == nil {
		return out
	}
	out = strings.ReplaceAll(out, "{prior_command}", prior.Command)
	if prior.AssetID != nil {
		out = strings.ReplaceAll(out, "{asset_id}", *prior.AssetID)
	}
	if prior.TargetID != nil {
		out = strings.ReplaceAll(out, "{target_id}", *prior.TargetID)
	}
	return out
}
