package skills

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParsedSkill is the section schema extracted from a skill document.
// Every consumer treats a missing section as empty, never as an error.
type ParsedSkill struct {
	FrontMatter  map[string]string `json:"frontMatter"`
	Overview     string            `json:"overview"`
	Capabilities []string          `json:"capabilities"`
	Dos          []string          `json:"dos"`
	Donts        []string          `json:"donts"`
	Examples     string            `json:"examples"`
	Resources    string            `json:"resources"`
}

// Section headers matched exactly (after trimming).
const (
	headerOverview     = "## Overview"
	headerCapabilities = "## Core Capabilities"
	headerExamples     = "## Examples"
	headerResources    = "## Resources"

	markerDo   = "✅ DO:"
	markerDont = "❌ DON'T:"
)

// ParseContent extracts the front-matter block and the five known sections
// from a skill document. Parsing is total: any input string yields a
// ParsedSkill with empty fields where material is missing or malformed.
func ParseContent(raw string) ParsedSkill {
	parsed := ParsedSkill{
		FrontMatter:  map[string]string{},
		Capabilities: []string{},
		Dos:          []string{},
		Donts:        []string{},
	}

	body, front := splitFrontMatter(raw)
	if front != "" {
		parsed.FrontMatter = parseFrontMatter(front)
	}

	var overview, examples, resources []string
	section := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		switch trimmed {
		case headerOverview:
			section = "overview"
			continue
		case headerCapabilities:
			section = "capabilities"
			continue
		case headerExamples:
			section = "examples"
			continue
		case headerResources:
			section = "resources"
			continue
		}
		if strings.HasPrefix(trimmed, "## ") {
			// Unknown section: ignore its content.
			section = ""
			continue
		}

		// DO/DON'T checklist markers are recognized anywhere in the body.
		if item, ok := strings.CutPrefix(trimmed, markerDo); ok {
			if item = strings.TrimSpace(item); item != "" {
				parsed.Dos = append(parsed.Dos, item)
			}
			continue
		}
		if item, ok := strings.CutPrefix(trimmed, markerDont); ok {
			if item = strings.TrimSpace(item); item != "" {
				parsed.Donts = append(parsed.Donts, item)
			}
			continue
		}

		switch section {
		case "overview":
			overview = append(overview, line)
		case "capabilities":
			if item, ok := bulletItem(trimmed); ok {
				parsed.Capabilities = append(parsed.Capabilities, item)
			}
		case "examples":
			examples = append(examples, line)
		case "resources":
			resources = append(resources, line)
		}
	}

	parsed.Overview = strings.TrimSpace(strings.Join(overview, "\n"))
	parsed.Examples = strings.TrimSpace(strings.Join(examples, "\n"))
	parsed.Resources = strings.TrimSpace(strings.Join(resources, "\n"))
	return parsed
}

// splitFrontMatter separates a leading front-matter block delimited by ---
// lines from the document body. Without a complete block, the whole input
// is the body.
func splitFrontMatter(raw string) (body, front string) {
	lines := strings.Split(raw, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.TrimSpace(line) == "---" {
			start = i
		}
		break
	}
	if start < 0 {
		return raw, ""
	}
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n"), strings.Join(lines[start+1:i], "\n")
		}
	}
	return raw, ""
}

// parseFrontMatter decodes flat key: value pairs. Malformed YAML or nested
// values degrade to an empty/partial map rather than an error.
func parseFrontMatter(front string) map[string]string {
	out := map[string]string{}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return out
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		case int, int64, float64, bool:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func bulletItem(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* "} {
		if item, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(item), true
		}
	}
	return "", false
}
