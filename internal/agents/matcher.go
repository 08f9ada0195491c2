package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentdesk/agentdesk/internal/provider"
)

// MatchResult is the routing decision for one question.
type MatchResult struct {
	Agent      *Agent  `json:"agent"`
	Confidence float64 `json:"confidence"` // 0..1
	Reasoning  string  `json:"reasoning"`
}

// CreateDecision says whether a question deserves a brand-new agent.
type CreateDecision struct {
	ShouldCreate bool   `json:"shouldCreate"`
	Topic        string `json:"topic"`
	Reasoning    string `json:"reasoning"`
}

// Confidence bands for routing. At or above AutoRouteConfidence the match
// is strong enough to route without considering agent creation.
const (
	AutoRouteConfidence = 0.7
	weakConfidence      = 0.3
	fallbackMaxScore    = 10.0
)

// Matcher routes questions to the best existing agent using the fast model
// tier, with a deterministic keyword scorer as degradation path.
type Matcher struct {
	llm   provider.LLMProvider
	retry provider.RetryConfig
}

// NewMatcher creates a question router.
func NewMatcher(llm provider.LLMProvider) *Matcher {
	return &Matcher{llm: llm, retry: provider.DefaultRetryConfig()}
}

// Match picks the agent best suited to answer question. An empty roster
// returns a nil-agent result without calling the model; model failure
// degrades to keyword scoring. Match never persists anything.
func (m *Matcher) Match(ctx context.Context, question string, roster []*Agent) MatchResult {
	if len(roster) == 0 {
		return MatchResult{Agent: nil, Confidence: 0, Reasoning: "no agents available"}
	}

	result, err := m.matchWithModel(ctx, question, roster)
	if err != nil {
		slog.Warn("Agent matching degraded to keyword scoring", "op", "match_agent", "error", err)
		return keywordMatch(question, roster)
	}
	return result
}

func (m *Matcher) matchWithModel(ctx context.Context, question string, roster []*Agent) (MatchResult, error) {
	var sb strings.Builder
	for i, a := range roster {
		fmt.Fprintf(&sb, "%d. %s - %s (expertise: %s; capabilities: %s)\n",
			i, a.Name, truncateText(a.Description, 150),
			strings.Join(a.Expertise, ", "), strings.Join(a.Capabilities, ", "))
	}

	prompt := fmt.Sprintf(`Pick the agent best suited to answer the user's question.

Question: %q

Agents:
%s
Prefer exact keyword overlap between the question and an agent's declared
expertise over looser thematic similarity.

Confidence scale: 70-100 the agent clearly covers the question, 40-69 partial
coverage, 0-39 poor fit. If no agent fits, pick the closest one with a low
confidence.

Respond with ONLY a JSON object:
{"index": 0, "confidence": 85, "reasoning": "one short sentence"}`, question, sb.String())

	var pick struct {
		Index      int     `json:"index"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	// Parsing runs inside the retry loop so a malformed pick is re-asked
	// before the keyword fallback takes over.
	err := provider.Retry(ctx, m.retry, "match_agent", func(ctx context.Context) error {
		pick.Index, pick.Confidence, pick.Reasoning = 0, 0, ""
		completion, err := m.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   256,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		obj := extractJSONObject(completion.Content)
		if obj == "" {
			return provider.NewAIError("match_agent", provider.KindInvalidResponse,
				fmt.Errorf("no JSON object in model output"))
		}
		if err := json.Unmarshal([]byte(obj), &pick); err != nil {
			return provider.NewAIError("match_agent", provider.KindInvalidResponse,
				fmt.Errorf("parse pick: %w", err))
		}
		if pick.Index < 0 || pick.Index >= len(roster) {
			return provider.NewAIError("match_agent", provider.KindInvalidResponse,
				fmt.Errorf("index %d out of range", pick.Index))
		}
		return nil
	})
	if err != nil {
		return MatchResult{}, err
	}

	conf := pick.Confidence / 100
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return MatchResult{Agent: roster[pick.Index], Confidence: conf, Reasoning: pick.Reasoning}, nil
}

// keywordMatch scores each agent deterministically: +3 per expertise term
// appearing verbatim in the question, +2 when the agent name appears, +1
// per description word longer than four characters found in the question.
// Confidence is capped at the auto-route threshold.
func keywordMatch(question string, roster []*Agent) MatchResult {
	q := strings.ToLower(question)
	qWords := map[string]struct{}{}
	for _, w := range splitWords(question) {
		qWords[w] = struct{}{}
	}

	var best *Agent
	bestScore := 0.0
	for _, a := range roster {
		score := 0.0
		for _, term := range a.Expertise {
			if term != "" && strings.Contains(q, strings.ToLower(term)) {
				score += 3
			}
		}
		if a.Name != "" && strings.Contains(q, strings.ToLower(a.Name)) {
			score += 2
		}
		for _, w := range splitWords(a.Description) {
			if len(w) > 4 {
				if _, ok := qWords[w]; ok {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = a
		}
	}

	if best == nil {
		return MatchResult{Agent: nil, Confidence: 0, Reasoning: "no keyword overlap with any agent"}
	}
	conf := bestScore / fallbackMaxScore
	if conf > AutoRouteConfidence {
		conf = AutoRouteConfidence
	}
	return MatchResult{Agent: best, Confidence: conf, Reasoning: "keyword overlap"}
}

// ShouldCreateNewAgent decides whether question warrants creating a new
// agent instead of routing to match. A confident match short-circuits to
// false without a model call.
func (m *Matcher) ShouldCreateNewAgent(ctx context.Context, question string, match MatchResult) CreateDecision {
	if match.Confidence >= AutoRouteConfidence {
		return CreateDecision{ShouldCreate: false, Reasoning: "existing agent covers the question"}
	}

	decision, err := m.createDecisionWithModel(ctx, question, match)
	if err != nil {
		slog.Warn("Create decision degraded to heuristic", "op", "should_create", "error", err)
		return heuristicCreateDecision(question, match)
	}
	return decision
}

func (m *Matcher) createDecisionWithModel(ctx context.Context, question string, match MatchResult) (CreateDecision, error) {
	bestLine := "none"
	if match.Agent != nil {
		bestLine = fmt.Sprintf("%s (confidence %.2f)", match.Agent.Name, match.Confidence)
	}

	prompt := fmt.Sprintf(`A user asked: %q

Best existing agent: %s

Decide whether a NEW specialist agent should be created for this question.
Create one only when the question names a substantive topic no existing
agent covers well. Small talk and one-off trivia do not deserve an agent.

Respond with ONLY a JSON object:
{"shouldCreate": true, "topic": "Topic Expert", "reasoning": "one short sentence"}`, question, bestLine)

	var decision CreateDecision
	err := provider.Retry(ctx, m.retry, "should_create", func(ctx context.Context) error {
		decision = CreateDecision{}
		completion, err := m.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   256,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		obj := extractJSONObject(completion.Content)
		if obj == "" {
			return provider.NewAIError("should_create", provider.KindInvalidResponse,
				fmt.Errorf("no JSON object in model output"))
		}
		if err := json.Unmarshal([]byte(obj), &decision); err != nil {
			return provider.NewAIError("should_create", provider.KindInvalidResponse,
				fmt.Errorf("parse decision: %w", err))
		}
		if decision.ShouldCreate && strings.TrimSpace(decision.Topic) == "" {
			return provider.NewAIError("should_create", provider.KindInvalidResponse,
				fmt.Errorf("create decision without topic"))
		}
		return nil
	})
	if err != nil {
		return CreateDecision{}, err
	}
	return decision, nil
}

// heuristicCreateDecision creates only for very weak matches, naming the
// topic after the first substantive question word.
func heuristicCreateDecision(question string, match MatchResult) CreateDecision {
	if match.Confidence >= weakConfidence {
		return CreateDecision{ShouldCreate: false, Reasoning: "existing agent is a moderate match"}
	}
	words := contentWords(question, 4)
	if len(words) == 0 {
		return CreateDecision{ShouldCreate: false, Reasoning: "no substantive topic in question"}
	}
	return CreateDecision{
		ShouldCreate: true,
		Topic:        titleCase(words[0]) + " Expert",
		Reasoning:    "no existing agent covers this topic",
	}
}

// extractJSONObject returns the first balanced {...} block in s, or "".
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
