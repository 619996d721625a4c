package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// scanLines yields non-empty trimmed lines from raw tool output.
func scanLines(raw string, fn func(line string) error) error {
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

// subdomainParser handles plain newline-separated domain lists.
type subdomainParser struct{}

func (p *subdomainParser) Parse(raw string) (*model.ParsedResult, error) {
	result := &model.ParsedResult{Category: model.CategorySubdomains}
	seen := make(map[string]struct{})
	err := scanLines(raw, func(line string) error {
		domain := strings.ToLower(strings.TrimSuffix(line, "."))
		if strings.ContainsAny(domain, " \t/") || !strings.Contains(domain, ".") {
			return fmt.Errorf("not a domain: %q", line)
		}
		if _, dup := seen[domain]; dup {
			return nil
		}
		seen[domain] = struct{}{}
		result.Assets = append(result.Assets, model.DiscoveredAsset{
			Value: domain,
			Kind:  "domain",
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// portParser handles JSONL port-scan output, one open port per line.
type portParser struct{}

type portLine struct {
	Host string `json:"host"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

func (p *portParser) Parse(raw string) (*model.ParsedResult, error) {
	result := &model.ParsedResult{Category: model.CategoryPorts}
	err := scanLines(raw, func(line string) error {
		var rec portLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("decode port record: %w", err)
		}
		if rec.Host == "" || rec.Port <= 0 || rec.Port > 65535 {
			return fmt.Errorf("invalid port record: %q", line)
		}
		meta := map[string]string{}
		if rec.IP != "" {
			meta["ip"] = rec.IP
		}
		result.Assets = append(result.Assets, model.DiscoveredAsset{
			Value:    fmt.Sprintf("%s:%d", rec.Host, rec.Port),
			Kind:     "host_port",
			Metadata: meta,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// webParser handles JSONL HTTP-probe output. Field locations vary across
// probe versions, so extraction goes through JMESPath expressions.
type webParser struct {
	fields map[string]string
}

func newWebParser() *webParser {
	return &webParser{fields: compileFields(map[string]string{
		"url":    "url",
		"status": "status_code || status",
		"title":  "title",
		"server": "webserver || server",
	})}
}

func (p *webParser) Parse(raw string) (*model.ParsedResult, error) {
	result := &model.ParsedResult{Category: model.CategoryWeb}
	err := scanLines(raw, func(line string) error {
		var data any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return fmt.Errorf("decode web record: %w", err)
		}
		url := searchString(p.fields["url"], data)
		if url == "" {
			return fmt.Errorf("web record missing url: %q", line)
		}
		meta := map[string]string{}
		for _, key := range []string{"status", "title", "server"} {
			if v := searchString(p.fields[key], data); v != "" {
				meta[key] = v
			}
		}
		result.Assets = append(result.Assets, model.DiscoveredAsset{
			Value:    url,
			Kind:     "url",
			Metadata: meta,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// vulnerabilityParser handles JSONL scanner findings. Nested info blocks are
// flattened with JMESPath so template output changes stay a one-line fix.
type vulnerabilityParser struct {
	fields map[string]string
}

func newVulnerabilityParser() *vulnerabilityParser {
	return &vulnerabilityParser{fields: compileFields(map[string]string{
		"name":        `info.name || name`,
		"severity":    `info.severity || severity`,
		"description": `info.description || description`,
		"host":        `host`,
		"matched":     `"matched-at" || matched_at || url`,
		"template":    `"template-id" || template_id`,
	})}
}

func (p *vulnerabilityParser) Parse(raw string) (*model.ParsedResult, error) {
	result := &model.ParsedResult{Category: model.CategoryVulnerabilities}
	err := scanLines(raw, func(line string) error {
		var data any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return fmt.Errorf("decode finding: %w", err)
		}
		name := searchString(p.fields["name"], data)
		host := searchString(p.fields["host"], data)
		if name == "" || host == "" {
			return fmt.Errorf("finding missing name or host: %q", line)
		}
		severity := strings.ToLower(searchString(p.fields["severity"], data))
		if severity == "" {
			severity = "info"
		}
		meta := map[string]string{}
		if v := searchString(p.fields["matched"], data); v != "" {
			meta["matched_at"] = v
		}
		if v := searchString(p.fields["template"], data); v != "" {
			meta["template_id"] = v
		}
		result.Findings = append(result.Findings, model.Finding{
			Name:        name,
			Severity:    severity,
			Host:        host,
			Description: searchString(p.fields["description"], data),
			Metadata:    meta,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// screenshotParser handles JSONL records pointing at captured screenshots.
type screenshotParser struct{}

type screenshotLine struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

func (p *screenshotParser) Parse(raw string) (*model.ParsedResult, error) {
	result := &model.ParsedResult{Category: model.CategoryScreenshots}
	err := scanLines(raw, func(line string) error {
		var rec screenshotLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("decode screenshot record: %w", err)
		}
		if rec.URL == "" || rec.Path == "" {
			return fmt.Errorf("invalid screenshot record: %q", line)
		}
		result.Assets = append(result.Assets, model.DiscoveredAsset{
			Value:    rec.Path,
			Kind:     "screenshot",
			Metadata: map[string]string{"url": rec.URL},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// compileFields validates the expressions up front so a typo in a parser
// definition fails at construction, not per record.
func compileFields(exprs map[string]string) map[string]string {
	for name, expr := range exprs {
		if _, err := jmespath.Compile(expr); err != nil {
			panic(fmt.Sprintf("invalid jmespath for %s: %v", name, err))
		}
	}
	return exprs
}

func searchString(expr string, data any) string {
	res, err := jmespath.Search(expr, data)
	if err != nil || res == nil {
		return ""
	}
	switch v := res.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
