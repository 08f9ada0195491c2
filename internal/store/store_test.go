package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/skills"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAgent(owner string) *agents.Agent {
	return &agents.Agent{
		ID:           "agent-1",
		OwnerID:      owner,
		Name:         "Tax Helper",
		Description:  "Income taxation",
		Expertise:    []string{"taxes"},
		SystemPrompt: "You are a tax specialist.",
		Capabilities: []string{"answer questions"},
	}
}

func TestAgentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	a := testAgent("u1")
	if err := s.CreateAgent(a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("version after create = %d", a.Version)
	}

	got, err := s.GetAgent("u1", "agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Tax Helper" || got.Expertise[0] != "taxes" {
		t.Fatalf("got %+v", got)
	}
}

func TestAgentOwnerScoping(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateAgent(testAgent("u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.GetAgent("u2", "agent-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner get: %v", err)
	}
	if err := s.DeleteAgent("u2", "agent-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner delete: %v", err)
	}
	if _, err := s.GetAgent("u1", "agent-1"); err != nil {
		t.Fatalf("agent gone after denied delete: %v", err)
	}
}

func TestAgentUpdateBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	a := testAgent("u1")
	if err := s.CreateAgent(a); err != nil {
		t.Fatalf("create: %v", err)
	}

	a.Description = "Income and corporate taxation"
	if err := s.UpdateAgent(a); err != nil {
		t.Fatalf("update: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("version after update = %d", a.Version)
	}

	got, _ := s.GetAgent("u1", "agent-1")
	if got.Version != 2 || got.Description != "Income and corporate taxation" {
		t.Fatalf("got %+v", got)
	}
}

func TestAgentUpdateStaleVersion(t *testing.T) {
	s := newTestStore(t)
	a := testAgent("u1")
	if err := s.CreateAgent(a); err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := *a
	if err := s.UpdateAgent(a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := s.UpdateAgent(&stale); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale update: %v", err)
	}
}

func TestDeleteAgentCascadesToSkills(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateAgent(testAgent("u1")); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	sk := &skills.Skill{ID: "skill-1", AgentID: "agent-1", Name: "VAT Rules"}
	if err := s.CreateSkill(sk); err != nil {
		t.Fatalf("create skill: %v", err)
	}

	if err := s.DeleteAgent("u1", "agent-1"); err != nil {
		t.Fatalf("delete agent: %v", err)
	}
	if _, err := s.GetSkill("skill-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("skill survived cascade: %v", err)
	}
}

func TestSkillRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateAgent(testAgent("u1")); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	sk := &skills.Skill{
		ID: "skill-1", AgentID: "agent-1", Name: "VAT Rules",
		Content:  "## Overview\nVAT basics.",
		Metadata: skills.Metadata{Tags: []string{"finance"}},
	}
	if err := s.CreateSkill(sk); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sk.Version != "1.0.0" {
		t.Fatalf("default version = %q", sk.Version)
	}

	sk.Description = "European VAT"
	if err := s.UpdateSkill(sk); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, err := s.ListSkills("agent-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Description != "European VAT" || list[0].Metadata.Tags[0] != "finance" {
		t.Fatalf("list = %+v", list[0])
	}
}

func TestConversationAppendAndGet(t *testing.T) {
	s := newTestStore(t)
	msgs := []ChatMessage{
		{Role: "user", Content: "hello", VoiceEnabled: true},
		{Role: "assistant", Content: "hi there", AgentUsed: "agent-1"},
	}
	for _, m := range msgs {
		if err := s.AppendMessage("sess-1", "u1", m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	c, err := s.GetConversation("u1", "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(c.Messages) != 2 {
		t.Fatalf("messages = %d", len(c.Messages))
	}
	if c.Messages[0].Content != "hello" || !c.Messages[0].VoiceEnabled {
		t.Fatalf("first message = %+v", c.Messages[0])
	}
	if c.Messages[1].AgentUsed != "agent-1" {
		t.Fatalf("second message = %+v", c.Messages[1])
	}

	if _, err := s.GetConversation("u2", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-owner get: %v", err)
	}
}

func TestSuggestAgentDeduplicates(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendMessage("sess-1", "u1", ChatMessage{Role: "user", Content: "q"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.SuggestAgent("sess-1", "agent-1"); err != nil {
			t.Fatalf("suggest: %v", err)
		}
	}
	c, _ := s.GetConversation("u1", "sess-1")
	if len(c.AgentsSuggested) != 1 {
		t.Fatalf("suggestions = %v", c.AgentsSuggested)
	}
}

func TestRecentMessagesWindow(t *testing.T) {
	s := newTestStore(t)
	for _, content := range []string{"one", "two", "three", "four"} {
		if err := s.AppendMessage("sess-1", "u1", ChatMessage{Role: "user", Content: content}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.RecentMessages("sess-1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Content != "three" || got[1].Content != "four" {
		t.Fatalf("got %+v", got)
	}
}

func TestPruneConversations(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendMessage("old", "u1", ChatMessage{Role: "user", Content: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE session_id = 'old'`,
		time.Now().Add(-48*time.Hour).UTC()); err != nil {
		t.Fatalf("age conversation: %v", err)
	}
	if err := s.AppendMessage("fresh", "u1", ChatMessage{Role: "user", Content: "y"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := s.PruneConversations(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d", n)
	}
	if _, err := s.GetConversation("u1", "fresh"); err != nil {
		t.Fatalf("fresh conversation pruned: %v", err)
	}
}

func TestUsageLogsRange(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, svc := range []string{ServiceChatFast, ServiceChatSmart, ServiceTTS} {
		log := &UsageLog{UserID: "u1", Timestamp: base.AddDate(0, 0, i),
			Service: svc, InputTokens: 100, Cost: 0.5, Success: true}
		if err := s.InsertUsageLog(log); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	// [start, end): the day-2 record at the end bound is excluded.
	got, err := s.UsageBetween("u1", base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d logs", len(got))
	}
	if got[0].Service != ServiceChatFast || got[1].Service != ServiceChatSmart {
		t.Fatalf("got %+v", got)
	}
}

func TestUpdateUsageCost(t *testing.T) {
	s := newTestStore(t)
	log := &UsageLog{UserID: "u1", Service: ServiceChatFast, InputTokens: 100, Cost: 1.0}
	if err := s.InsertUsageLog(log); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpdateUsageCost(log.ID, 0.25); err != nil {
		t.Fatalf("update: %v", err)
	}
	all, _ := s.AllUsage()
	if len(all) != 1 || all[0].Cost != 0.25 {
		t.Fatalf("got %+v", all)
	}
}

func TestSettingsDefaultsAndPatch(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSettings("u1")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if !got.AI.CachingEnabled || got.Voice.Enabled {
		t.Fatalf("defaults = %+v", got)
	}

	updated, err := s.UpdateSettings("u1", SettingsPatch{
		APIKeys:       map[string]StringPatch{"openai": {Op: OpSet, Value: "sk-test"}},
		VoiceEnabled:  BoolPatch{Op: OpSet, Value: true},
		MonthlyBudget: FloatPatch{Op: OpSet, Value: 25},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.APIKeys["openai"] != "sk-test" || !updated.Voice.Enabled || updated.MonthlyBudget != 25 {
		t.Fatalf("updated = %+v", updated)
	}

	// Unchanged fields survive a second patch; Remove resets.
	final, err := s.UpdateSettings("u1", SettingsPatch{
		APIKeys:       map[string]StringPatch{"openai": {Op: OpRemove}},
		MonthlyBudget: FloatPatch{Op: OpUnchanged, Value: 999},
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if _, ok := final.APIKeys["openai"]; ok {
		t.Fatalf("api key not removed: %+v", final.APIKeys)
	}
	if final.MonthlyBudget != 25 || !final.Voice.Enabled {
		t.Fatalf("unchanged fields lost: %+v", final)
	}
}
