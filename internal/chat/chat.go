// Package chat wires the full message pipeline: rate limiting, voice
// correction, agent matching and creation, skill augmentation, completion,
// conversation history, and usage recording.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/correction"
	"github.com/agentdesk/agentdesk/internal/provider"
	"github.com/agentdesk/agentdesk/internal/ratelimit"
	"github.com/agentdesk/agentdesk/internal/skills"
	"github.com/agentdesk/agentdesk/internal/store"
	"github.com/agentdesk/agentdesk/internal/usage"
)

// Request is one inbound chat message.
type Request struct {
	UserID     string `json:"userId"`
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	VoiceInput bool   `json:"voiceInput"`
}

// Response is the pipeline outcome. Rejected is set instead of Reply when a
// rate limit turned the request away.
type Response struct {
	Reply        string               `json:"reply"`
	Agent        *agents.Agent        `json:"agent,omitempty"`
	AgentCreated bool                 `json:"agentCreated"`
	SkillsUsed   []string             `json:"skillsUsed,omitempty"`
	Corrections  []correction.Applied `json:"corrections,omitempty"`
	Audio        []byte               `json:"audio,omitempty"`
	Rejected     *ratelimit.Decision  `json:"rejected,omitempty"`
}

// Limits bundles the three limiter instances a chat call must pass.
type Limits struct {
	User  *ratelimit.Limiter
	Fast  *ratelimit.Limiter
	Smart *ratelimit.Limiter
}

// NewLimits creates the standard limiter set: 50 requests/min per user,
// 100/min on the fast tier, 50/min on the smart tier.
func NewLimits() *Limits {
	return &Limits{
		User:  ratelimit.New(50, time.Minute),
		Fast:  ratelimit.New(100, time.Minute),
		Smart: ratelimit.New(50, time.Minute),
	}
}

// Service runs the chat pipeline.
type Service struct {
	store     *store.Store
	fast      provider.LLMProvider
	smart     provider.LLMProvider
	matcher   *agents.Matcher
	creator   *agents.Creator
	skills    *skills.Engine
	corrector *correction.Corrector
	limits    *Limits
	recorder  *usage.Recorder
	retry     provider.RetryConfig
	now       func() time.Time
}

// Config carries the collaborators a Service needs.
type Config struct {
	Store     *store.Store
	Fast      provider.LLMProvider
	Smart     provider.LLMProvider
	Searcher  provider.Searcher
	Corrector *correction.Corrector
	Limits    *Limits
	Recorder  *usage.Recorder
}

// New builds the chat service. The fast tier drives matching and skill
// ranking; the smart tier drives profile generation and final answers.
func New(cfg Config) *Service {
	return &Service{
		store:     cfg.Store,
		fast:      cfg.Fast,
		smart:     cfg.Smart,
		matcher:   agents.NewMatcher(cfg.Fast),
		creator:   agents.NewCreator(cfg.Smart, cfg.Searcher),
		skills:    skills.NewEngine(cfg.Fast),
		corrector: cfg.Corrector,
		limits:    cfg.Limits,
		recorder:  cfg.Recorder,
		retry:     provider.DefaultRetryConfig(),
		now:       time.Now,
	}
}

const fallbackReply = "I ran into a temporary problem answering that. Please try again in a moment."

// Handle runs one message through the pipeline. It returns an error only
// for invalid input or store failures; model failures degrade through the
// component fallbacks, and rate rejections come back in Response.Rejected.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	if req.UserID == "" || req.SessionID == "" || req.Message == "" {
		return nil, errors.New("chat: userId, sessionId and message are required")
	}

	if d := s.limits.User.Check(req.UserID); !d.Allowed {
		return &Response{Rejected: &d}, nil
	}
	// Matching and skill ranking run on the fast tier, the answer itself on
	// the smart tier. Both are checked up front so a rejected request never
	// persists a user turn with no reply.
	if d := s.limits.Fast.Check("fast"); !d.Allowed {
		return &Response{Rejected: &d}, nil
	}
	if d := s.limits.Smart.Check("smart"); !d.Allowed {
		return &Response{Rejected: &d}, nil
	}

	resp := &Response{}
	message := req.Message
	if req.VoiceInput && s.corrector != nil {
		message, resp.Corrections = s.corrector.Correct(message)
	}

	roster, err := s.store.ListAgents(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("chat: load agents: %w", err)
	}

	match := s.matcher.Match(ctx, message, roster)
	agent := match.Agent
	if match.Confidence < agents.AutoRouteConfidence {
		if decision := s.matcher.ShouldCreateNewAgent(ctx, message, match); decision.ShouldCreate {
			created, err := s.createAgent(ctx, req.UserID, decision.Topic, message)
			if err != nil {
				return nil, err
			}
			agent = created
			resp.AgentCreated = true
		}
	}
	resp.Agent = agent

	if err := s.store.AppendMessage(req.SessionID, req.UserID, store.ChatMessage{
		Role: "user", Content: message, VoiceEnabled: req.VoiceInput,
	}); err != nil {
		return nil, fmt.Errorf("chat: append message: %w", err)
	}

	systemPrompt := "You are a helpful assistant."
	var matchedSkills []skills.Match
	if agent != nil {
		if err := s.store.SuggestAgent(req.SessionID, agent.ID); err != nil {
			slog.Warn("Failed to record agent suggestion", "session", req.SessionID, "error", err)
		}
		systemPrompt = agent.SystemPrompt
		agentSkills, err := s.store.ListSkills(agent.ID)
		if err != nil {
			return nil, fmt.Errorf("chat: load skills: %w", err)
		}
		matchedSkills = s.skills.MatchToMessage(ctx, message, agentSkills)
		systemPrompt = skills.BuildSystemPrompt(systemPrompt, matchedSkills)
		for _, m := range matchedSkills {
			resp.SkillsUsed = append(resp.SkillsUsed, m.Skill.Name)
		}
	}

	settings, err := s.store.GetSettings(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("chat: load settings: %w", err)
	}

	started := s.now()
	completion, completionErr := s.complete(ctx, systemPrompt, message, settings)
	elapsed := s.now().Sub(started)

	success := completionErr == nil
	if success {
		resp.Reply = completion.Content
	} else {
		slog.Error("Completion failed after retries", "user", req.UserID, "error", completionErr)
		resp.Reply = fallbackReply
	}

	if err := s.store.AppendMessage(req.SessionID, req.UserID, store.ChatMessage{
		Role: "assistant", Content: resp.Reply, AgentUsed: agentID(agent),
	}); err != nil {
		return nil, fmt.Errorf("chat: append reply: %w", err)
	}

	log := &store.UsageLog{
		UserID:         req.UserID,
		Service:        store.ServiceChatSmart,
		Success:        success,
		ConversationID: req.SessionID,
		AgentID:        agentID(agent),
		CachingEnabled: settings.AI.CachingEnabled,
	}
	if success {
		log.InputTokens = completion.Usage.Input
		log.OutputTokens = completion.Usage.Output
		log.CachedTokens = completion.Usage.Cached
		log.Model = completion.Model
	}
	s.recorder.Record(log)

	if success && settings.Voice.Enabled {
		s.speak(ctx, req.UserID, settings, resp)
	}

	s.updateAgentMetrics(agent, success, elapsed)
	s.updateSkillStats(matchedSkills, success, elapsed)
	return resp, nil
}

func (s *Service) complete(ctx context.Context, systemPrompt, message string, settings *store.UserSettings) (*provider.Completion, error) {
	var completion *provider.Completion
	err := provider.Retry(ctx, s.retry, "chat_complete", func(ctx context.Context) error {
		var err error
		completion, err = s.smart.Complete(ctx, &provider.CompletionRequest{
			System:         systemPrompt,
			Prompt:         message,
			MaxTokens:      2048,
			Temperature:    0.7,
			CacheHint:      settings.AI.CachingEnabled,
			APIKeyOverride: settings.APIKeys["openai"],
		})
		return err
	})
	return completion, err
}

func (s *Service) speak(ctx context.Context, userID string, settings *store.UserSettings, resp *Response) {
	tts, err := s.smart.Speak(ctx, &provider.TTSRequest{
		Text:  resp.Reply,
		Voice: settings.Voice.Voice,
	})
	if err != nil {
		slog.Warn("Voice synthesis failed", "user", userID, "error", err)
		return
	}
	resp.Audio = tts.AudioData
	s.recorder.Record(&store.UsageLog{
		UserID:     userID,
		Service:    store.ServiceTTS,
		Characters: len(resp.Reply),
		Success:    true,
	})
}

func (s *Service) createAgent(ctx context.Context, ownerID, topic, message string) (*agents.Agent, error) {
	draft := s.creator.GenerateProfile(ctx, topic, message)
	agent := &agents.Agent{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Name:          draft.Name,
		Description:   draft.Description,
		Expertise:     draft.Expertise,
		SystemPrompt:  draft.SystemPrompt,
		KnowledgeBase: draft.KnowledgeBase,
		Capabilities:  draft.Capabilities,
		Style:         draft.Style,
	}
	if err := s.store.CreateAgent(agent); err != nil {
		return nil, fmt.Errorf("chat: create agent: %w", err)
	}
	slog.Info("Created agent", "agent", agent.ID, "name", agent.Name, "owner", ownerID)
	return agent, nil
}

func (s *Service) updateAgentMetrics(agent *agents.Agent, success bool, elapsed time.Duration) {
	if agent == nil {
		return
	}
	agent.Metrics.RecordOutcome(success, elapsed, s.now())
	if err := s.store.UpdateAgent(agent); err != nil {
		slog.Warn("Failed to update agent metrics", "agent", agent.ID, "error", err)
	}
}

func (s *Service) updateSkillStats(matched []skills.Match, success bool, elapsed time.Duration) {
	now := s.now()
	for _, m := range matched {
		sk := m.Skill
		prev := float64(sk.Usage.TimesInvoked)
		sk.Usage.TimesInvoked++
		n := float64(sk.Usage.TimesInvoked)
		outcome := 0.0
		if success {
			outcome = 1.0
		}
		sk.Usage.SuccessRate = (sk.Usage.SuccessRate*prev + outcome) / n
		sk.Usage.AvgResponseTime = (sk.Usage.AvgResponseTime*prev + elapsed.Seconds()) / n
		sk.Usage.LastUsed = now
		if err := s.store.UpdateSkill(sk); err != nil {
			slog.Warn("Failed to update skill stats", "skill", sk.ID, "error", err)
		}
	}
}

func agentID(a *agents.Agent) string {
	if a == nil {
		return ""
	}
	return a.ID
}
