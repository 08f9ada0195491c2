// Package skills implements the skill engine: parsing structured skill
// documents, ranking skills against a user message, and merging selected
// skills into an augmented system prompt.
package skills

import "time"

// Skill is a reusable structured knowledge document attached to exactly one
// agent, injected into its prompt when relevant.
type Skill struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agentId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Version     string     `json:"version"` // semantic-version string
	Content     string     `json:"content"`
	Resources   []Resource `json:"resources,omitempty"`
	Metadata    Metadata   `json:"metadata"`
	Usage       UsageStats `json:"usage"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Resource is a supporting file bundled with a skill.
type Resource struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}

// Metadata holds skill classification data.
type Metadata struct {
	Dependencies []string `json:"dependencies,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Author       string   `json:"author,omitempty"`
	Category     string   `json:"category,omitempty"`
}

// UsageStats tracks how a skill performs in practice.
type UsageStats struct {
	TimesInvoked    int       `json:"timesInvoked"`
	LastUsed        time.Time `json:"lastUsed"`
	SuccessRate     float64   `json:"successRate"`
	AvgResponseTime float64   `json:"avgResponseTime"`
}
