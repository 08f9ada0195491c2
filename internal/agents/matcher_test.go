package agents

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/agentdesk/agentdesk/internal/provider"
)

type fakeLLM struct {
	response  string
	responses []string // consumed first when non-empty, one per call
	err       error
	calls     int
	lastReq   *provider.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Completion, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) > 0 {
		next := f.responses[0]
		f.responses = f.responses[1:]
		return &provider.Completion{Content: next, Model: "fake"}, nil
	}
	return &provider.Completion{Content: f.response, Model: "fake"}, nil
}

func (f *fakeLLM) Speak(ctx context.Context, req *provider.TTSRequest) (*provider.TTSResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) DefaultModel() string { return "fake" }

// terminalErr is non-retryable so tests exercising fallbacks do not wait
// out backoff delays.
var terminalErr = provider.NewAIError("complete", provider.KindValidation, errors.New("boom"))

// fastRetry strips the backoff so tests exercising bad model output do
// not sleep between attempts.
var fastRetry = provider.RetryConfig{MaxAttempts: 3}

func newTestMatcher(llm provider.LLMProvider) *Matcher {
	m := NewMatcher(llm)
	m.retry = fastRetry
	return m
}

func testRoster() []*Agent {
	return []*Agent{
		{ID: "a1", Name: "Paris Guide", Description: "Travel advice for visiting Paris museums",
			Expertise: []string{"paris", "french culture"}},
		{ID: "a2", Name: "Tax Helper", Description: "Income taxation and deduction rules",
			Expertise: []string{"taxes", "deductions"}},
	}
}

func TestMatchEmptyRoster(t *testing.T) {
	llm := &fakeLLM{response: `{"index":0,"confidence":90,"reasoning":"x"}`}
	m := NewMatcher(llm)

	got := m.Match(context.Background(), "anything", nil)
	if got.Agent != nil || got.Confidence != 0 {
		t.Fatalf("got %+v", got)
	}
	if got.Reasoning != "no agents available" {
		t.Fatalf("reasoning = %q", got.Reasoning)
	}
	if llm.calls != 0 {
		t.Fatalf("model called %d times for empty roster", llm.calls)
	}
}

func TestMatchNormalizesConfidence(t *testing.T) {
	llm := &fakeLLM{response: `picking: {"index":1,"confidence":85,"reasoning":"tax topic"}`}
	m := NewMatcher(llm)

	got := m.Match(context.Background(), "how do deductions work", testRoster())
	if got.Agent == nil || got.Agent.ID != "a2" {
		t.Fatalf("got %+v", got)
	}
	if math.Abs(got.Confidence-0.85) > 1e-9 {
		t.Fatalf("confidence = %f", got.Confidence)
	}
}

func TestMatchFallbackKeywordScoring(t *testing.T) {
	m := NewMatcher(&fakeLLM{err: terminalErr})

	// a1 scores +3 (expertise "paris") +2 (name "paris guide" appears)
	// +2 (description words "paris", "museums") = 7 -> confidence 0.7.
	got := m.Match(context.Background(), "paris guide for museums", testRoster())
	if got.Agent == nil || got.Agent.ID != "a1" {
		t.Fatalf("got %+v", got)
	}
	if math.Abs(got.Confidence-0.7) > 1e-9 {
		t.Fatalf("confidence = %f, want 0.7", got.Confidence)
	}
	if got.Reasoning != "keyword overlap" {
		t.Fatalf("reasoning = %q", got.Reasoning)
	}
}

func TestMatchFallbackCapsAtAutoRoute(t *testing.T) {
	m := NewMatcher(&fakeLLM{err: terminalErr})

	roster := []*Agent{{
		ID: "a1", Name: "Go Helper",
		Description: "golang concurrency channels goroutines scheduling runtime",
		Expertise:   []string{"golang", "concurrency", "channels", "goroutines"},
	}}
	got := m.Match(context.Background(),
		"golang concurrency channels goroutines scheduling runtime question", roster)
	if got.Confidence != AutoRouteConfidence {
		t.Fatalf("confidence = %f, want cap %f", got.Confidence, AutoRouteConfidence)
	}
}

func TestMatchFallbackNoOverlap(t *testing.T) {
	m := NewMatcher(&fakeLLM{err: terminalErr})

	got := m.Match(context.Background(), "zzz qqq", testRoster())
	if got.Agent != nil || got.Confidence != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestMatchBadIndexFallsBack(t *testing.T) {
	llm := &fakeLLM{response: `{"index":9,"confidence":90,"reasoning":"x"}`}
	m := newTestMatcher(llm)

	got := m.Match(context.Background(), "paris trip", testRoster())
	if got.Reasoning != "keyword overlap" {
		t.Fatalf("expected keyword fallback, got %+v", got)
	}
	if llm.calls != 3 {
		t.Fatalf("bad pick retried %d times, want 3", llm.calls)
	}
}

func TestMatchMalformedPickRecoversOnRetry(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"no JSON here, sorry",
		`{"index":1,"confidence":90,"reasoning":"tax topic"}`,
	}}
	m := newTestMatcher(llm)

	got := m.Match(context.Background(), "how do deductions work", testRoster())
	if got.Agent == nil || got.Agent.ID != "a2" {
		t.Fatalf("retry did not recover the pick: %+v", got)
	}
	if got.Reasoning == "keyword overlap" {
		t.Fatalf("fell back despite recoverable output: %+v", got)
	}
	if llm.calls != 2 {
		t.Fatalf("model called %d times, want 2", llm.calls)
	}
}

func TestMatchPromptListsCapabilities(t *testing.T) {
	llm := &fakeLLM{response: `{"index":0,"confidence":90,"reasoning":"x"}`}
	m := NewMatcher(llm)

	roster := testRoster()
	roster[0].Capabilities = []string{"itinerary planning", "museum bookings"}
	m.Match(context.Background(), "paris trip", roster)

	if llm.lastReq == nil {
		t.Fatal("model not called")
	}
	prompt := llm.lastReq.Prompt
	for _, want := range []string{
		"capabilities: itinerary planning, museum bookings",
		"expertise: paris, french culture",
		"exact keyword overlap",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestShouldCreateShortCircuitsOnStrongMatch(t *testing.T) {
	llm := &fakeLLM{response: `{"shouldCreate":true,"topic":"X","reasoning":"y"}`}
	m := NewMatcher(llm)

	got := m.ShouldCreateNewAgent(context.Background(), "q",
		MatchResult{Agent: testRoster()[0], Confidence: 0.7})
	if got.ShouldCreate {
		t.Fatalf("created despite strong match: %+v", got)
	}
	if llm.calls != 0 {
		t.Fatalf("model called %d times for strong match", llm.calls)
	}
}

func TestShouldCreateModelDecision(t *testing.T) {
	llm := &fakeLLM{response: `{"shouldCreate":true,"topic":"Beekeeping Expert","reasoning":"new topic"}`}
	m := NewMatcher(llm)

	got := m.ShouldCreateNewAgent(context.Background(), "how do I start beekeeping",
		MatchResult{Confidence: 0.2})
	if !got.ShouldCreate || got.Topic != "Beekeeping Expert" {
		t.Fatalf("got %+v", got)
	}
}

func TestShouldCreateHeuristic(t *testing.T) {
	m := NewMatcher(&fakeLLM{err: terminalErr})

	cases := []struct {
		name       string
		question   string
		confidence float64
		wantCreate bool
		wantTopic  string
	}{
		{"weak match creates", "how does beekeeping work", 0.1, true, "Beekeeping Expert"},
		{"moderate match does not", "how does beekeeping work", 0.3, false, ""},
		{"stopwords skipped", "could you please explain beekeeping", 0.1, true, "Beekeeping Expert"},
		{"short words skipped", "why is it so", 0.1, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.ShouldCreateNewAgent(context.Background(), tc.question,
				MatchResult{Confidence: tc.confidence})
			if got.ShouldCreate != tc.wantCreate {
				t.Fatalf("shouldCreate = %v, want %v (%+v)", got.ShouldCreate, tc.wantCreate, got)
			}
			if got.Topic != tc.wantTopic {
				t.Fatalf("topic = %q, want %q", got.Topic, tc.wantTopic)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`text {"a":{"b":1}} tail`, `{"a":{"b":1}}`},
		{`{"s":"br}ace"}`, `{"s":"br}ace"}`},
		{`nothing`, ``},
		{`{unterminated`, ``},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Fatalf("extractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
