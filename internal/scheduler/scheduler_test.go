package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/chat"
	"github.com/agentdesk/agentdesk/internal/config"
	"github.com/agentdesk/agentdesk/internal/provider"
	"github.com/agentdesk/agentdesk/internal/store"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Completion{Content: f.response, Model: "fake"}, nil
}

func (f *fakeLLM) Speak(ctx context.Context, req *provider.TTSRequest) (*provider.TTSResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) DefaultModel() string { return "fake" }

func newTestScheduler(t *testing.T, cfg config.SchedulerConfig, llm *fakeLLM) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	var evolver *agents.Evolver
	if llm != nil {
		evolver = agents.NewEvolver(llm)
	}
	return New(cfg, st, evolver, chat.NewLimits()), st
}

func TestRunRetention(t *testing.T) {
	cfg := config.SchedulerConfig{ConversationKeepDays: 30, UsageKeepDays: 30}
	s, st := newTestScheduler(t, cfg, nil)

	if err := st.AppendMessage("old", "u1", store.ChatMessage{Role: "user", Content: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := st.DB().Exec(`UPDATE conversations SET updated_at = ?`,
		time.Now().AddDate(0, 0, -60).UTC()); err != nil {
		t.Fatalf("age: %v", err)
	}
	if err := st.InsertUsageLog(&store.UsageLog{UserID: "u1", Service: store.ServiceChatFast,
		Timestamp: time.Now().AddDate(0, 0, -60).UTC()}); err != nil {
		t.Fatalf("insert usage: %v", err)
	}

	s.runRetention()

	if _, err := st.GetConversation("u1", "old"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old conversation kept: %v", err)
	}
	logs, _ := st.AllUsage()
	if len(logs) != 0 {
		t.Fatalf("old usage kept: %+v", logs)
	}
}

func TestRunRetentionDisabledByZeroDays(t *testing.T) {
	s, st := newTestScheduler(t, config.SchedulerConfig{}, nil)
	if err := st.AppendMessage("old", "u1", store.ChatMessage{Role: "user", Content: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := st.DB().Exec(`UPDATE conversations SET updated_at = ?`,
		time.Now().AddDate(0, 0, -500).UTC()); err != nil {
		t.Fatalf("age: %v", err)
	}

	s.runRetention()

	if _, err := st.GetConversation("u1", "old"); err != nil {
		t.Fatalf("conversation pruned with retention disabled: %v", err)
	}
}

func TestRunEvolutionRecordsHistory(t *testing.T) {
	llm := &fakeLLM{response: `{
		"needsImprovement": true,
		"suggestions": ["be less terse"],
		"updatedFields": {},
		"reasoning": "answers too short"
	}`}
	cfg := config.SchedulerConfig{EvolutionLookbackDays: 7}
	s, st := newTestScheduler(t, cfg, llm)

	agent := &agents.Agent{ID: "agent-1", OwnerID: "u1", Name: "Tax Helper",
		Metrics: agents.PerformanceMetrics{QuestionsHandled: 6, LastUsed: time.Now()}}
	if err := st.CreateAgent(agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	for _, m := range []store.ChatMessage{
		{Role: "user", Content: "what about VAT"},
		{Role: "assistant", Content: "short", AgentUsed: "agent-1"},
	} {
		if err := st.AppendMessage("sess-1", "u1", m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	s.runEvolution()

	got, err := st.GetAgent("u1", "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if len(got.EvolutionHistory) != 1 {
		t.Fatalf("history = %+v", got.EvolutionHistory)
	}
	if got.EvolutionHistory[0].Reason != "answers too short" {
		t.Fatalf("entry = %+v", got.EvolutionHistory[0])
	}
	if got.Version != 2 {
		t.Fatalf("version = %d", got.Version)
	}
}

func TestRunEvolutionSkipsHealthyAgents(t *testing.T) {
	llm := &fakeLLM{response: `{"needsImprovement": false, "reasoning": "fine"}`}
	s, st := newTestScheduler(t, config.SchedulerConfig{EvolutionLookbackDays: 7}, llm)

	agent := &agents.Agent{ID: "agent-1", OwnerID: "u1", Name: "Tax Helper",
		Metrics: agents.PerformanceMetrics{LastUsed: time.Now()}}
	if err := st.CreateAgent(agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if err := st.AppendMessage("sess-1", "u1",
		store.ChatMessage{Role: "assistant", Content: "fine answer", AgentUsed: "agent-1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s.runEvolution()

	got, _ := st.GetAgent("u1", "agent-1")
	if len(got.EvolutionHistory) != 0 || got.Version != 1 {
		t.Fatalf("healthy agent mutated: %+v", got)
	}
}

func TestRunSweep(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{}, nil)
	s.limits.User.Check("u1")
	s.now = func() time.Time { return time.Now().Add(3 * time.Minute) }

	s.runSweep()

	if n := s.limits.User.Len(); n != 0 {
		t.Fatalf("stale entries left: %d", n)
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	cfg := config.SchedulerConfig{RetentionCron: "not a cron line"}
	s, _ := newTestScheduler(t, cfg, nil)
	if err := s.Start(); err == nil {
		t.Fatalf("no error for invalid cron expression")
	}
}
