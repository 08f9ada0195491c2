package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/correction"
	"github.com/agentdesk/agentdesk/internal/pricing"
	"github.com/agentdesk/agentdesk/internal/provider"
	"github.com/agentdesk/agentdesk/internal/skills"
	"github.com/agentdesk/agentdesk/internal/store"
	"github.com/agentdesk/agentdesk/internal/usage"
)

// scriptLLM returns its replies in order, repeating the last one when the
// script runs out.
type scriptLLM struct {
	replies []string
	err     error
	calls   int
}

func (s *scriptLLM) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Completion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return &provider.Completion{
		Content: s.replies[i],
		Model:   "script-model",
		Usage:   provider.TokenUsage{Input: 100, Output: 50, Cached: 10},
	}, nil
}

func (s *scriptLLM) Speak(ctx context.Context, req *provider.TTSRequest) (*provider.TTSResponse, error) {
	return &provider.TTSResponse{AudioData: []byte("mp3"), Format: "mp3"}, nil
}

func (s *scriptLLM) DefaultModel() string { return "script-model" }

type harness struct {
	service *Service
	store   *store.Store
	rec     *usage.Recorder
}

func newHarness(t *testing.T, fast, smart provider.LLMProvider) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	corrector, err := correction.NewDefault()
	if err != nil {
		t.Fatalf("corrector: %v", err)
	}
	rec := usage.NewRecorder(usage.NewLedger(st, pricing.DefaultTable()), nil, 16)

	svc := New(Config{
		Store:     st,
		Fast:      fast,
		Smart:     smart,
		Corrector: corrector,
		Limits:    NewLimits(),
		Recorder:  rec,
	})
	return &harness{service: svc, store: st, rec: rec}
}

func seedAgent(t *testing.T, st *store.Store) *agents.Agent {
	t.Helper()
	a := &agents.Agent{
		ID: "agent-1", OwnerID: "u1", Name: "Tax Helper",
		Description:  "Income taxation and deductions",
		Expertise:    []string{"taxes"},
		SystemPrompt: "You are a tax specialist.",
	}
	if err := st.CreateAgent(a); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return a
}

func TestHandleRoutesToMatchedAgent(t *testing.T) {
	fast := &scriptLLM{replies: []string{
		`{"index":0,"confidence":90,"reasoning":"tax question"}`,
		`[{"index":0,"score":85,"reasoning":"covers VAT"}]`,
	}}
	smart := &scriptLLM{replies: []string{"VAT applies to most goods."}}
	h := newHarness(t, fast, smart)
	seedAgent(t, h.store)
	sk := &skills.Skill{ID: "skill-1", AgentID: "agent-1", Name: "VAT Rules",
		Description: "European VAT taxes"}
	if err := h.store.CreateSkill(sk); err != nil {
		t.Fatalf("seed skill: %v", err)
	}

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "how do taxes on VAT work",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Reply != "VAT applies to most goods." {
		t.Fatalf("reply = %q", resp.Reply)
	}
	if resp.Agent == nil || resp.Agent.ID != "agent-1" || resp.AgentCreated {
		t.Fatalf("agent = %+v created = %v", resp.Agent, resp.AgentCreated)
	}
	if len(resp.SkillsUsed) != 1 || resp.SkillsUsed[0] != "VAT Rules" {
		t.Fatalf("skills used = %v", resp.SkillsUsed)
	}

	c, err := h.store.GetConversation("u1", "sess-1")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(c.Messages) != 2 || c.Messages[1].AgentUsed != "agent-1" {
		t.Fatalf("messages = %+v", c.Messages)
	}
	if len(c.AgentsSuggested) != 1 {
		t.Fatalf("suggested = %v", c.AgentsSuggested)
	}

	h.rec.Close()
	logs, _ := h.store.AllUsage()
	if len(logs) != 1 || logs[0].Service != store.ServiceChatSmart || !logs[0].Success {
		t.Fatalf("usage = %+v", logs)
	}
	if logs[0].InputTokens != 100 || logs[0].Cost == 0 {
		t.Fatalf("usage log = %+v", logs[0])
	}

	updated, _ := h.store.GetAgent("u1", "agent-1")
	if updated.Metrics.QuestionsHandled != 1 || updated.Version != 2 {
		t.Fatalf("metrics = %+v version = %d", updated.Metrics, updated.Version)
	}
	gotSkill, _ := h.store.GetSkill("skill-1")
	if gotSkill.Usage.TimesInvoked != 1 {
		t.Fatalf("skill usage = %+v", gotSkill.Usage)
	}
}

func TestHandleCreatesAgentForNewTopic(t *testing.T) {
	fast := &scriptLLM{replies: []string{
		`{"shouldCreate":true,"topic":"Beekeeping Expert","reasoning":"new topic"}`,
	}}
	smart := &scriptLLM{replies: []string{
		`{"name":"Beekeeping Expert","description":"Knows bees.","expertise":["beekeeping"],"systemPrompt":"You are a beekeeping specialist."}`,
		"Start with one hive in spring.",
	}}
	h := newHarness(t, fast, smart)

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "how do I start beekeeping",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !resp.AgentCreated || resp.Agent == nil || resp.Agent.Name != "Beekeeping Expert" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Reply != "Start with one hive in spring." {
		t.Fatalf("reply = %q", resp.Reply)
	}

	roster, _ := h.store.ListAgents("u1")
	if len(roster) != 1 || roster[0].SystemPrompt != "You are a beekeeping specialist." {
		t.Fatalf("roster = %+v", roster)
	}
}

func TestHandleRejectsOnUserLimit(t *testing.T) {
	fast := &scriptLLM{replies: []string{`{}`}}
	h := newHarness(t, fast, fast)
	for i := 0; i < 50; i++ {
		h.service.limits.User.Check("u1")
	}

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "hello",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Rejected == nil || resp.Rejected.Allowed {
		t.Fatalf("resp = %+v", resp)
	}
	if fast.calls != 0 {
		t.Fatalf("model called despite rejection")
	}
	if _, err := h.store.GetConversation("u1", "sess-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("conversation persisted despite rejection: %v", err)
	}
}

func TestHandleRejectsOnSmartLimitBeforePersisting(t *testing.T) {
	fast := &scriptLLM{replies: []string{`{}`}}
	h := newHarness(t, fast, fast)
	for i := 0; i < 50; i++ {
		h.service.limits.Smart.Check("smart")
	}

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "hello",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Rejected == nil || resp.Rejected.Allowed {
		t.Fatalf("resp = %+v", resp)
	}
	if fast.calls != 0 {
		t.Fatalf("model called despite rejection")
	}
	if _, err := h.store.GetConversation("u1", "sess-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("user turn persisted despite rejection: %v", err)
	}
}

func TestHandleCorrectsVoiceInput(t *testing.T) {
	fast := &scriptLLM{replies: []string{
		`{"shouldCreate":false,"reasoning":"small talk"}`,
	}}
	smart := &scriptLLM{replies: []string{"JavaScript is a programming language."}}
	h := newHarness(t, fast, smart)

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1",
		Message: "explain java script code", VoiceInput: true,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(resp.Corrections) == 0 {
		t.Fatalf("no corrections applied")
	}

	c, _ := h.store.GetConversation("u1", "sess-1")
	if !strings.Contains(c.Messages[0].Content, "JavaScript") {
		t.Fatalf("stored message = %q", c.Messages[0].Content)
	}
	if !c.Messages[0].VoiceEnabled {
		t.Fatalf("voice flag lost")
	}
}

func TestHandleTextInputSkipsCorrection(t *testing.T) {
	fast := &scriptLLM{replies: []string{
		`{"shouldCreate":false,"reasoning":"small talk"}`,
	}}
	smart := &scriptLLM{replies: []string{"ok"}}
	h := newHarness(t, fast, smart)

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "explain java script code",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(resp.Corrections) != 0 {
		t.Fatalf("corrections applied to typed input: %v", resp.Corrections)
	}
	c, _ := h.store.GetConversation("u1", "sess-1")
	if c.Messages[0].Content != "explain java script code" {
		t.Fatalf("typed message altered: %q", c.Messages[0].Content)
	}
}

func TestHandleDegradesOnCompletionFailure(t *testing.T) {
	fast := &scriptLLM{replies: []string{
		`{"index":0,"confidence":90,"reasoning":"x"}`,
		`[]`,
	}}
	smart := &scriptLLM{err: provider.NewAIError("complete", provider.KindValidation, errors.New("boom"))}
	h := newHarness(t, fast, smart)
	seedAgent(t, h.store)

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "taxes question",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Reply != fallbackReply {
		t.Fatalf("reply = %q", resp.Reply)
	}

	h.rec.Close()
	logs, _ := h.store.AllUsage()
	if len(logs) != 1 || logs[0].Success {
		t.Fatalf("usage = %+v", logs)
	}

	updated, _ := h.store.GetAgent("u1", "agent-1")
	if updated.Metrics.SuccessRate != 0 || updated.Metrics.QuestionsHandled != 1 {
		t.Fatalf("metrics = %+v", updated.Metrics)
	}
}

func TestHandleValidatesInput(t *testing.T) {
	h := newHarness(t, &scriptLLM{replies: []string{"x"}}, &scriptLLM{replies: []string{"x"}})
	cases := []Request{
		{SessionID: "s", Message: "m"},
		{UserID: "u", Message: "m"},
		{UserID: "u", SessionID: "s"},
	}
	for _, req := range cases {
		if _, err := h.service.Handle(context.Background(), req); err == nil {
			t.Fatalf("no error for %+v", req)
		}
	}
}

func TestHandleVoiceReply(t *testing.T) {
	fast := &scriptLLM{replies: []string{`{"shouldCreate":false,"reasoning":"x"}`}}
	smart := &scriptLLM{replies: []string{"spoken answer"}}
	h := newHarness(t, fast, smart)
	if _, err := h.store.UpdateSettings("u1", store.SettingsPatch{
		VoiceEnabled: store.BoolPatch{Op: store.OpSet, Value: true},
	}); err != nil {
		t.Fatalf("settings: %v", err)
	}

	resp, err := h.service.Handle(context.Background(), Request{
		UserID: "u1", SessionID: "sess-1", Message: "say something nice please",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if string(resp.Audio) != "mp3" {
		t.Fatalf("audio = %q", resp.Audio)
	}

	h.rec.Close()
	logs, _ := h.store.AllUsage()
	var ttsSeen bool
	for _, log := range logs {
		if log.Service == store.ServiceTTS && log.Characters == len("spoken answer") {
			ttsSeen = true
		}
	}
	if !ttsSeen {
		t.Fatalf("tts usage missing: %+v", logs)
	}
}

func TestNewLimitsWindows(t *testing.T) {
	l := NewLimits()
	for i := 0; i < 50; i++ {
		if d := l.User.Check("u"); !d.Allowed {
			t.Fatalf("request %d rejected", i)
		}
	}
	if d := l.User.Check("u"); d.Allowed {
		t.Fatalf("51st user request allowed")
	}
	if d := l.Smart.Check("smart"); !d.Allowed {
		t.Fatalf("smart limiter coupled to user limiter")
	}
}
