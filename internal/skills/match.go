package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/agentdesk/agentdesk/internal/provider"
)

// Match is one ranked skill with its relevance score.
type Match struct {
	Skill     *Skill `json:"skill"`
	Score     int    `json:"score"` // 0-100
	Reasoning string `json:"reasoning"`
}

// Inclusion threshold for LLM-ranked skills and the flat score used when
// ranking degrades to the keyword fallback.
const (
	minRelevanceScore  = 60
	fallbackFlatScore  = 75
	preFilterMinWordLn = 3
)

// Engine ranks skills against user messages using the fast model tier with
// a keyword-only degradation path.
type Engine struct {
	llm   provider.LLMProvider
	retry provider.RetryConfig
}

// NewEngine creates a skill ranking engine.
func NewEngine(llm provider.LLMProvider) *Engine {
	return &Engine{llm: llm, retry: provider.DefaultRetryConfig()}
}

// PreFilter keeps only skills whose name, description, or tags share at
// least one word longer than three characters with the message,
// case-insensitively.
func PreFilter(message string, candidates []*Skill) []*Skill {
	messageWords := wordSet(message, preFilterMinWordLn)
	if len(messageWords) == 0 {
		return nil
	}

	var kept []*Skill
	for _, s := range candidates {
		haystack := s.Name + " " + s.Description + " " + strings.Join(s.Metadata.Tags, " ")
		for word := range wordSet(haystack, preFilterMinWordLn) {
			if _, ok := messageWords[word]; ok {
				kept = append(kept, s)
				break
			}
		}
	}
	return kept
}

// MatchToMessage returns the skills relevant to message, ranked by score
// descending. An empty pre-filter result short-circuits without calling the
// model; model failure degrades to every pre-filtered skill at a flat score.
func (e *Engine) MatchToMessage(ctx context.Context, message string, candidates []*Skill) []Match {
	filtered := PreFilter(message, candidates)
	if len(filtered) == 0 {
		return nil
	}

	matches, err := e.rankWithModel(ctx, message, filtered)
	if err != nil {
		slog.Warn("Skill ranking degraded to keyword scores", "op", "rank_skills", "error", err)
		matches = make([]Match, 0, len(filtered))
		for _, s := range filtered {
			matches = append(matches, Match{Skill: s, Score: fallbackFlatScore, Reasoning: "keyword match"})
		}
		return matches
	}
	return matches
}

func (e *Engine) rankWithModel(ctx context.Context, message string, candidates []*Skill) ([]Match, error) {
	var sb strings.Builder
	for i, s := range candidates {
		parsed := ParseContent(s.Content)
		fmt.Fprintf(&sb, "%d. %s - %s", i, s.Name, s.Description)
		if len(s.Metadata.Tags) > 0 {
			fmt.Fprintf(&sb, " (tags: %s)", strings.Join(s.Metadata.Tags, ", "))
		}
		if parsed.Overview != "" {
			fmt.Fprintf(&sb, "\n   Overview: %s", truncate(parsed.Overview, 200))
		}
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(`Score each skill 0-100 for how well it covers the user's message.

Scoring policy:
- Be generous with topical overlap: a skill about a broad region (e.g. "European travel") covers every constituent city or country, and a skill about a broad topic covers its named subtopics.
- Score 0 only for skills with no plausible connection to the message.

User message: %q

Skills:
%s
Respond with ONLY a JSON array, one entry per relevant skill:
[{"index": 0, "score": 85, "reasoning": "one short sentence"}]`, message, sb.String())

	var scored []struct {
		Index     int    `json:"index"`
		Score     int    `json:"score"`
		Reasoning string `json:"reasoning"`
	}
	// Parsing runs inside the retry loop so a malformed ranking is re-asked
	// before the keyword fallback takes over.
	err := provider.Retry(ctx, e.retry, "rank_skills", func(ctx context.Context) error {
		scored = nil
		completion, err := e.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   1024,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		arr := extractJSONArray(completion.Content)
		if arr == "" {
			return provider.NewAIError("rank_skills", provider.KindInvalidResponse,
				fmt.Errorf("no JSON array in model output"))
		}
		if err := json.Unmarshal([]byte(arr), &scored); err != nil {
			return provider.NewAIError("rank_skills", provider.KindInvalidResponse,
				fmt.Errorf("parse scores: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, s := range scored {
		if s.Index < 0 || s.Index >= len(candidates) {
			continue
		}
		if s.Score < minRelevanceScore {
			continue
		}
		if s.Score > 100 {
			s.Score = 100
		}
		matches = append(matches, Match{Skill: candidates[s.Index], Score: s.Score, Reasoning: s.Reasoning})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
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

// wordSet returns the lowercase words of s longer than minLen characters.
func wordSet(s string, minLen int) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) > minLen {
			out[w] = struct{}{}
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
