package config

import "github.com/surfaceops/surface-api/internal/domain/model"

// DefaultWorkflows returns the built-in workflow chains. Each chain names an
// ordered capability sequence; the first step's command is rendered with the
// trigger target, later steps with predecessor fields.
func DefaultWorkflows() map[string][]model.WorkflowStep {
	return map[string][]model.WorkflowStep{
		"surface-discovery": {
			{Category: model.CategorySubdomains, Command: "subfinder -silent -d {target}"},
			{Category: model.CategoryWeb, Command: "httpx -silent -json -l {prior_command}"},
			{Category: model.CategoryVulnerabilities, Command: "nuclei -silent -jsonl -u {prior_command}"},
		},
		"port-sweep": {
			{Category: model.CategoryPorts, Command: "naabu -silent -json -host {target}"},
		},
		"web-screenshot": {
			{Category: model.CategoryWeb, Command: "httpx -silent -json -u {target}"},
			{Category: model.CategoryScreenshots, Command: "gowitness scan -u {prior_command} --json"},
		},
	}
}
