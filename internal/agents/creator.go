package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentdesk/agentdesk/internal/provider"
)

// ProfileDraft is a complete generated persona ready to become an Agent.
type ProfileDraft struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Expertise     []string          `json:"expertise"`
	SystemPrompt  string            `json:"systemPrompt"`
	KnowledgeBase KnowledgeBase     `json:"knowledgeBase"`
	Capabilities  []string          `json:"capabilities"`
	Style         ConversationStyle `json:"conversationStyle"`
}

// ProfileUpdate carries only the fields a refinement changed. Nil slices
// and empty strings mean "leave as is".
type ProfileUpdate struct {
	Description  string   `json:"description,omitempty"`
	Expertise    []string `json:"expertise,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Facts        []string `json:"facts,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Description == "" && u.SystemPrompt == "" &&
		len(u.Expertise) == 0 && len(u.Capabilities) == 0 && len(u.Facts) == 0
}

// Creator generates agent personas with the smart model tier. Generation
// never fails for a non-empty topic: invalid model output degrades to a
// deterministic persona.
type Creator struct {
	llm      provider.LLMProvider
	searcher provider.Searcher
	retry    provider.RetryConfig
	now      func() time.Time
}

// NewCreator builds a persona generator. searcher may be nil, in which case
// knowledge bases are generated from the model alone.
func NewCreator(llm provider.LLMProvider, searcher provider.Searcher) *Creator {
	return &Creator{
		llm:      llm,
		searcher: searcher,
		retry:    provider.DefaultRetryConfig(),
		now:      time.Now,
	}
}

// GenerateProfile produces a full persona for topic. context carries the
// triggering question or other background and may be empty.
func (c *Creator) GenerateProfile(ctx context.Context, topic, background string) *ProfileDraft {
	draft, err := c.generateWithModel(ctx, topic, background)
	if err != nil {
		slog.Warn("Profile generation degraded to template", "op", "generate_profile", "topic", topic, "error", err)
		draft = fallbackProfile(topic)
	}
	draft.normalize(c.now())
	return draft
}

func (c *Creator) generateWithModel(ctx context.Context, topic, background string) (*ProfileDraft, error) {
	prompt := fmt.Sprintf(`Design an AI agent persona specialized in %q.`, topic)
	if background != "" {
		prompt += fmt.Sprintf("\nThe agent was requested because of this question: %q", background)
	}
	prompt += `

Write a 300-500 word system prompt giving the agent a distinct voice,
its scope, and how it handles questions at its boundary.

Respond with ONLY a JSON object:
{
  "name": "short memorable name",
  "description": "one or two sentences",
  "expertise": ["area", "area"],
  "systemPrompt": "the 300-500 word persona",
  "knowledgeBase": {"facts": ["fact"], "sources": []},
  "capabilities": ["capability"],
  "conversationStyle": {"tone": "", "vocabulary": "", "responseLength": ""}
}`

	// Parse and validate inside the retry loop: an unparseable or incomplete
	// persona is re-asked before degrading to the template.
	var draft ProfileDraft
	err := provider.Retry(ctx, c.retry, "generate_profile", func(ctx context.Context) error {
		draft = ProfileDraft{}
		completion, err := c.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   2048,
			Temperature: 0.7,
		})
		if err != nil {
			return err
		}
		obj := extractJSONObject(completion.Content)
		if obj == "" {
			return provider.NewAIError("generate_profile", provider.KindInvalidResponse,
				fmt.Errorf("no JSON object in model output"))
		}
		if err := json.Unmarshal([]byte(obj), &draft); err != nil {
			return provider.NewAIError("generate_profile", provider.KindInvalidResponse,
				fmt.Errorf("parse profile: %w", err))
		}
		if err := draft.validate(); err != nil {
			return provider.NewAIError("generate_profile", provider.KindInvalidResponse, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

func (d *ProfileDraft) validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return fmt.Errorf("profile missing name")
	case strings.TrimSpace(d.Description) == "":
		return fmt.Errorf("profile missing description")
	case len(d.Expertise) == 0:
		return fmt.Errorf("profile missing expertise")
	case strings.TrimSpace(d.SystemPrompt) == "":
		return fmt.Errorf("profile missing system prompt")
	}
	return nil
}

// normalize replaces nil optional collections with empty ones and stamps
// the knowledge base.
func (d *ProfileDraft) normalize(at time.Time) {
	if d.Expertise == nil {
		d.Expertise = []string{}
	}
	if d.Capabilities == nil {
		d.Capabilities = []string{}
	}
	if d.KnowledgeBase.Facts == nil {
		d.KnowledgeBase.Facts = []string{}
	}
	if d.KnowledgeBase.Sources == nil {
		d.KnowledgeBase.Sources = []string{}
	}
	d.KnowledgeBase.LastUpdated = at
}

// fallbackProfile builds a deterministic persona from the topic alone.
func fallbackProfile(topic string) *ProfileDraft {
	name := strings.TrimSpace(topic)
	if name == "" {
		name = "General Assistant"
	}
	if !strings.HasSuffix(strings.ToLower(name), "expert") {
		name += " Expert"
	}
	return &ProfileDraft{
		Name:        name,
		Description: fmt.Sprintf("Specialist agent for questions about %s.", topic),
		Expertise:   []string{strings.ToLower(strings.TrimSpace(topic))},
		SystemPrompt: fmt.Sprintf(
			"You are %s, a specialist in %s. Answer questions in this area accurately and concisely. "+
				"When a question falls outside your specialty, say so and answer as far as general knowledge allows.",
			name, topic),
		Capabilities: []string{"answer questions", "explain concepts"},
		Style:        ConversationStyle{Tone: "professional", Vocabulary: "accessible", ResponseLength: "medium"},
	}
}

// RefineProfile asks the model which fields to change given user feedback.
// Failures yield an empty update, never an error.
func (c *Creator) RefineProfile(ctx context.Context, agent *Agent, feedback string) ProfileUpdate {
	prompt := fmt.Sprintf(`An agent received user feedback. Propose profile changes.

Agent: %s - %s
Expertise: %s
Feedback: %q

Respond with ONLY a JSON object containing JUST the fields to change
(omit unchanged fields entirely):
{"description": "", "expertise": [], "systemPrompt": "", "capabilities": [], "facts": []}`,
		agent.Name, truncateText(agent.Description, 200),
		strings.Join(agent.Expertise, ", "), feedback)

	var update ProfileUpdate
	err := provider.Retry(ctx, c.retry, "refine_profile", func(ctx context.Context) error {
		update = ProfileUpdate{}
		completion, err := c.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   1024,
			Temperature: 0.4,
		})
		if err != nil {
			return err
		}
		obj := extractJSONObject(completion.Content)
		if obj == "" {
			return provider.NewAIError("refine_profile", provider.KindInvalidResponse,
				fmt.Errorf("no JSON object in model output"))
		}
		if err := json.Unmarshal([]byte(obj), &update); err != nil {
			return provider.NewAIError("refine_profile", provider.KindInvalidResponse,
				fmt.Errorf("parse update: %w", err))
		}
		return nil
	})
	if err != nil {
		slog.Warn("Profile refinement skipped", "op", "refine_profile", "agent", agent.ID, "error", err)
		return ProfileUpdate{}
	}
	return update
}

// GenerateKnowledgeBase assembles starter facts for a topic, folding in web
// search snippets when a searcher is configured. Best-effort: any failure
// yields an empty knowledge base.
func (c *Creator) GenerateKnowledgeBase(ctx context.Context, topic string, expertise []string) KnowledgeBase {
	kb := KnowledgeBase{Facts: []string{}, Sources: []string{}, LastUpdated: c.now()}
	if strings.TrimSpace(topic) == "" {
		return kb
	}

	var searchContext strings.Builder
	var sources []string
	if c.searcher != nil {
		results, err := c.searcher.Search(ctx, topic, 5)
		if err != nil {
			slog.Debug("Knowledge search unavailable", "op", "generate_kb", "topic", topic, "error", err)
		}
		for _, r := range results {
			fmt.Fprintf(&searchContext, "- %s: %s\n", r.Title, truncateText(r.Snippet, 200))
			sources = append(sources, r.URL)
		}
	}

	prompt := fmt.Sprintf("List 8-12 concise, factual statements an expert on %q should know.", topic)
	if len(expertise) > 0 {
		prompt += fmt.Sprintf(" Cover these areas: %s.", strings.Join(expertise, ", "))
	}
	if searchContext.Len() > 0 {
		prompt += "\n\nRecent context from web search:\n" + searchContext.String()
	}
	prompt += "\n\nRespond with ONLY a JSON array of strings."

	var facts []string
	err := provider.Retry(ctx, c.retry, "generate_kb", func(ctx context.Context) error {
		facts = nil
		completion, err := c.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   1024,
			Temperature: 0.3,
		})
		if err != nil {
			return err
		}
		arr := extractJSONArray(completion.Content)
		if arr == "" {
			return provider.NewAIError("generate_kb", provider.KindInvalidResponse,
				fmt.Errorf("no JSON array in model output"))
		}
		if err := json.Unmarshal([]byte(arr), &facts); err != nil {
			return provider.NewAIError("generate_kb", provider.KindInvalidResponse, err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Knowledge base generation skipped", "op", "generate_kb", "topic", topic, "error", err)
		return kb
	}
	kb.Facts = facts
	kb.Sources = append(kb.Sources, sources...)
	return kb
}

// extractJSONArray returns the first balanced [...] block in s, or "".
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
