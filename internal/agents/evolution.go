package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/agentdesk/agentdesk/internal/provider"
)

// Message is one conversation turn as seen by the evolution analyzer.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analysis is the outcome of a performance review for one agent.
type Analysis struct {
	NeedsImprovement bool           `json:"needsImprovement"`
	Suggestions      []string       `json:"suggestions"`
	UpdatedFields    map[string]any `json:"updatedFields"`
	Reasoning        string         `json:"reasoning"`
	Priority         string         `json:"priority"` // high, medium, low
}

// Fields the analyzer is allowed to propose updates for.
var evolvableFields = map[string]struct{}{
	"expertise":           {},
	"capabilities":        {},
	"knowledgeBase.facts": {},
	"systemPrompt":        {},
}

const analysisMessageWindow = 10

// Evolver reviews recent conversations and proposes agent improvements
// using the smart model tier.
type Evolver struct {
	llm   provider.LLMProvider
	retry provider.RetryConfig
}

// NewEvolver creates a performance analyzer.
func NewEvolver(llm provider.LLMProvider) *Evolver {
	return &Evolver{llm: llm, retry: provider.DefaultRetryConfig()}
}

// AnalyzePerformance reviews the agent's recent messages. No messages means
// nothing to analyze; model failure degrades to metric heuristics.
func (e *Evolver) AnalyzePerformance(ctx context.Context, agent *Agent, recent []Message) Analysis {
	if len(recent) == 0 {
		return Analysis{Priority: PriorityFor(agent.Metrics), Reasoning: "no recent activity"}
	}

	analysis, err := e.analyzeWithModel(ctx, agent, recent)
	if err != nil {
		slog.Warn("Performance analysis degraded to heuristics", "op", "analyze_performance",
			"agent", agent.ID, "error", err)
		return heuristicAnalysis(agent, recent)
	}
	return analysis
}

func (e *Evolver) analyzeWithModel(ctx context.Context, agent *Agent, recent []Message) (Analysis, error) {
	window := recent
	if len(window) > analysisMessageWindow {
		window = window[len(window)-analysisMessageWindow:]
	}
	var transcript strings.Builder
	for _, msg := range window {
		fmt.Fprintf(&transcript, "[%s] %s\n", msg.Role, truncateText(msg.Content, 300))
	}

	prompt := fmt.Sprintf(`Review this agent's recent conversation quality.

Agent: %s - %s
Expertise: %s
Handled: %d questions, success rate %.2f

Recent messages:
%s
Look for answer quality issues, knowledge gaps, and tone drift. Field updates
may ONLY target: expertise, capabilities, knowledgeBase.facts, systemPrompt.

Respond with ONLY a JSON object:
{"needsImprovement": false, "suggestions": [], "updatedFields": {}, "reasoning": ""}`,
		agent.Name, truncateText(agent.Description, 150),
		strings.Join(agent.Expertise, ", "),
		agent.Metrics.QuestionsHandled, agent.Metrics.SuccessRate,
		transcript.String())

	var analysis Analysis
	err := provider.Retry(ctx, e.retry, "analyze_performance", func(ctx context.Context) error {
		analysis = Analysis{}
		completion, err := e.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   1024,
			Temperature: 0.3,
		})
		if err != nil {
			return err
		}
		obj := extractJSONObject(completion.Content)
		if obj == "" {
			return provider.NewAIError("analyze_performance", provider.KindInvalidResponse,
				fmt.Errorf("no JSON object in model output"))
		}
		if err := json.Unmarshal([]byte(obj), &analysis); err != nil {
			return provider.NewAIError("analyze_performance", provider.KindInvalidResponse,
				fmt.Errorf("parse analysis: %w", err))
		}
		return nil
	})
	if err != nil {
		return Analysis{}, err
	}

	for field := range analysis.UpdatedFields {
		if _, ok := evolvableFields[field]; !ok {
			delete(analysis.UpdatedFields, field)
		}
	}
	analysis.Priority = PriorityFor(agent.Metrics)
	return analysis, nil
}

// heuristicAnalysis derives suggestions from metrics and word frequency
// alone. It only speaks up once the agent has a minimal track record.
func heuristicAnalysis(agent *Agent, recent []Message) Analysis {
	analysis := Analysis{Priority: PriorityFor(agent.Metrics)}
	if agent.Metrics.QuestionsHandled < 5 {
		analysis.Reasoning = "not enough handled questions for heuristics"
		return analysis
	}

	known := map[string]struct{}{}
	for _, term := range agent.Expertise {
		for _, w := range splitWords(term) {
			known[w] = struct{}{}
		}
	}

	freq := map[string]int{}
	var assistantLens []int
	for _, msg := range recent {
		switch msg.Role {
		case "user":
			for _, w := range contentWords(msg.Content, 4) {
				if _, ok := known[w]; !ok {
					freq[w]++
				}
			}
		case "assistant":
			assistantLens = append(assistantLens, len(msg.Content))
		}
	}

	for _, w := range topWords(freq, 3, 2) {
		analysis.Suggestions = append(analysis.Suggestions,
			fmt.Sprintf("users frequently mention %q, consider adding it to expertise", w))
	}

	if len(assistantLens) > 0 {
		total := 0
		for _, n := range assistantLens {
			total += n
		}
		avg := total / len(assistantLens)
		if avg < 100 {
			analysis.Suggestions = append(analysis.Suggestions, "responses are too brief on average")
		} else if avg > 1000 {
			analysis.Suggestions = append(analysis.Suggestions, "responses are too verbose on average")
		}
	}

	if len(analysis.Suggestions) > 0 {
		analysis.NeedsImprovement = true
		analysis.Reasoning = "heuristic review of recent messages"
	} else {
		analysis.Reasoning = "no issues found by heuristic review"
	}
	return analysis
}

// topWords returns up to limit words whose count is at least minCount,
// most frequent first with ties broken alphabetically.
func topWords(freq map[string]int, limit, minCount int) []string {
	var words []string
	for w, n := range freq {
		if n >= minCount {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// PriorityFor grades how urgently an agent needs attention from its
// accumulated metrics.
func PriorityFor(m PerformanceMetrics) string {
	switch {
	case m.QuestionsHandled > 20 && m.SuccessRate < 0.7:
		return "high"
	case m.QuestionsHandled > 10 && m.SuccessRate < 0.85:
		return "medium"
	default:
		return "low"
	}
}

// IdentifyKnowledgeGaps asks the model which recurring question areas the
// agent's knowledge base does not cover. Empty input or any failure yields
// an empty list.
func (e *Evolver) IdentifyKnowledgeGaps(ctx context.Context, agent *Agent, questions []string) []string {
	if len(questions) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(`Which recurring question areas does this agent's knowledge NOT cover?

Agent expertise: %s
Known facts: %d

Recent questions:
- %s

Respond with ONLY a JSON array of short gap descriptions (empty array if none).`,
		strings.Join(agent.Expertise, ", "),
		len(agent.KnowledgeBase.Facts),
		strings.Join(questions, "\n- "))

	var gaps []string
	err := provider.Retry(ctx, e.retry, "identify_gaps", func(ctx context.Context) error {
		gaps = nil
		completion, err := e.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   512,
			Temperature: 0.3,
		})
		if err != nil {
			return err
		}
		arr := extractJSONArray(completion.Content)
		if arr == "" {
			return provider.NewAIError("identify_gaps", provider.KindInvalidResponse,
				fmt.Errorf("no JSON array in model output"))
		}
		if err := json.Unmarshal([]byte(arr), &gaps); err != nil {
			return provider.NewAIError("identify_gaps", provider.KindInvalidResponse, err)
		}
		return nil
	})
	if err != nil {
		slog.Debug("Knowledge gap analysis skipped", "op", "identify_gaps", "agent", agent.ID, "error", err)
		return nil
	}
	return gaps
}

// SuggestNewCapabilities proposes capabilities the agent could add based on
// what users ask for. Best-effort; empty on failure or empty input.
func (e *Evolver) SuggestNewCapabilities(ctx context.Context, agent *Agent, questions []string) []string {
	if len(questions) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(`Suggest up to 3 new capabilities for this agent based on what users ask.

Agent: %s
Current capabilities: %s

Recent questions:
- %s

Respond with ONLY a JSON array of short capability names (empty array if none).`,
		agent.Name,
		strings.Join(agent.Capabilities, ", "),
		strings.Join(questions, "\n- "))

	var caps []string
	err := provider.Retry(ctx, e.retry, "suggest_capabilities", func(ctx context.Context) error {
		caps = nil
		completion, err := e.llm.Complete(ctx, &provider.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   512,
			Temperature: 0.3,
		})
		if err != nil {
			return err
		}
		arr := extractJSONArray(completion.Content)
		if arr == "" {
			return provider.NewAIError("suggest_capabilities", provider.KindInvalidResponse,
				fmt.Errorf("no JSON array in model output"))
		}
		if err := json.Unmarshal([]byte(arr), &caps); err != nil {
			return provider.NewAIError("suggest_capabilities", provider.KindInvalidResponse, err)
		}
		return nil
	})
	if err != nil {
		slog.Debug("Capability suggestion skipped", "op", "suggest_capabilities", "agent", agent.ID, "error", err)
		return nil
	}
	return caps
}
