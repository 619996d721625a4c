package ingest

import (
	"fmt"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// Parser normalizes one capability's raw tool output.
type Parser interface {
	Parse(raw string) (*model.ParsedResult, error)
}

// ParserRegistry maps job categories to their output parsers. A report for a
// category with no registered parser is a contract error, not a retryable
// one.
type ParserRegistry struct {
	parsers map[model.JobCategory]Parser
}

// NewParserRegistry returns a registry with all built-in capability parsers.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: map[model.JobCategory]Parser{
		model.CategorySubdomains:      &subdomainParser{},
		model.CategoryPorts:           &portParser{},
		model.CategoryWeb:             newWebParser(),
		model.CategoryVulnerabilities: newVulnerabilityParser(),
		model.CategoryScreenshots:     &screenshotParser{},
	}}
}

// Register adds or replaces a capability parser.
func (r *ParserRegistry) Register(category model.JobCategory, p Parser) {
	r.parsers[category] = p
}

// Lookup returns the parser for a category.
func (r *ParserRegistry) Lookup(category model.JobCategory) (Parser, error) {
	p, ok := r.parsers[category]
	if !ok {
		return nil, fmt.Errorf("no parser registered for category %q", category)
	}
	return p, nil
}
