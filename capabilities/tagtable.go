package capabilities

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TagRule maps a capability tag to the keywords that imply it.
type TagRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// TagTable infers capability tags from free-form step text. The engine
// consults it when a planned step names no tags of its own.
type TagTable []TagRule

// DefaultTagTable covers the built-in modules.
func DefaultTagTable() TagTable {
	return TagTable{
		{Tag: "regulatory-lookup", Keywords: []string{
			"regulation", "regulatory", "jurisdiction", "framework",
			"gdpr", "hipaa", "ccpa", "requirement", "statute", "law",
		}},
		{Tag: "deadline-math", Keywords: []string{
			"deadline", "due date", "days remaining", "overdue",
			"timeline", "schedule", "checkpoint",
		}},
		{Tag: "risk-score", Keywords: []string{
			"risk", "score", "severity", "exposure", "impact",
		}},
		{Tag: "watchlist", Keywords: []string{
			"watchlist", "track", "monitor", "follow up", "follow-up",
		}},
		{Tag: "notify", Keywords: []string{
			"notify", "notification", "alert", "escalate", "webhook",
		}},
	}
}

// Match returns the tags whose keywords appear in text, preserving table
// order. Matching is case-insensitive substring containment.
func (t TagTable) Match(text string) []string {
	lowered := strings.ToLower(text)
	seen := make(map[string]bool)
	var tags []string
	for _, rule := range t {
		if seen[rule.Tag] {
			continue
		}
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				tags = append(tags, rule.Tag)
				seen[rule.Tag] = true
				break
			}
		}
	}
	return tags
}

// LoadTagTable reads a YAML tag table from path. The file is a list of
// {tag, keywords} entries and replaces the default table entirely.
func LoadTagTable(path string) (TagTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag table %s: %w", path, err)
	}
	var table TagTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse tag table %s: %w", path, err)
	}
	return table, nil
}
