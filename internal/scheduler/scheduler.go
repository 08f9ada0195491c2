// Package scheduler runs the background maintenance jobs: retention
// pruning, periodic agent evolution analysis, and rate-limiter sweeps.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentdesk/agentdesk/internal/agents"
	"github.com/agentdesk/agentdesk/internal/chat"
	"github.com/agentdesk/agentdesk/internal/config"
	"github.com/agentdesk/agentdesk/internal/store"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler owns the cron runner and the job implementations.
type Scheduler struct {
	cfg     config.SchedulerConfig
	store   *store.Store
	evolver *agents.Evolver
	limits  *chat.Limits
	cron    *cron.Cron
	now     func() time.Time
}

// New builds a scheduler. evolver may be nil to disable evolution analysis.
func New(cfg config.SchedulerConfig, st *store.Store, evolver *agents.Evolver, limits *chat.Limits) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		store:   st,
		evolver: evolver,
		limits:  limits,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		now:     time.Now,
	}
}

// Start registers the configured jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		expr string
		fn   func()
	}{
		{"retention", s.cfg.RetentionCron, s.runRetention},
		{"evolution", s.cfg.EvolutionCron, s.runEvolution},
		{"sweep", s.cfg.SweepCron, s.runSweep},
	}
	for _, job := range jobs {
		if job.expr == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.expr, job.fn); err != nil {
			return err
		}
		slog.Info("Scheduled job", "job", job.name, "cron", job.expr)
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runRetention() {
	if days := s.cfg.ConversationKeepDays; days > 0 {
		cutoff := s.now().AddDate(0, 0, -days)
		n, err := s.store.PruneConversations(cutoff)
		if err != nil {
			slog.Error("Conversation retention failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned conversations", "count", n, "cutoff", cutoff)
		}
	}
	if days := s.cfg.UsageKeepDays; days > 0 {
		cutoff := s.now().AddDate(0, 0, -days)
		n, err := s.store.PruneUsageLogs(cutoff)
		if err != nil {
			slog.Error("Usage retention failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned usage logs", "count", n, "cutoff", cutoff)
		}
	}
}

func (s *Scheduler) runEvolution() {
	if s.evolver == nil {
		return
	}
	lookback := s.cfg.EvolutionLookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	cutoff := s.now().AddDate(0, 0, -lookback)
	recent, err := s.store.RecentlyUsedAgents(cutoff)
	if err != nil {
		slog.Error("Evolution scan failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	for _, agent := range recent {
		s.analyzeAgent(ctx, agent)
	}
}

func (s *Scheduler) analyzeAgent(ctx context.Context, agent *agents.Agent) {
	history, err := s.store.AgentRecentMessages(agent.ID, 20)
	if err != nil {
		slog.Warn("Failed to load agent history", "agent", agent.ID, "error", err)
		return
	}
	recent := make([]agents.Message, 0, len(history))
	for _, m := range history {
		recent = append(recent, agents.Message{Role: m.Role, Content: m.Content})
	}

	analysis := s.evolver.AnalyzePerformance(ctx, agent, recent)
	if !analysis.NeedsImprovement {
		return
	}
	agent.RecordEvolution(agents.EvolutionEntry{
		Timestamp: s.now(),
		Reason:    analysis.Reasoning,
		Changes:   analysis.Suggestions,
	})
	if err := s.store.UpdateAgent(agent); err != nil {
		slog.Warn("Failed to record evolution", "agent", agent.ID, "error", err)
		return
	}
	slog.Info("Recorded evolution suggestions",
		"agent", agent.ID, "priority", analysis.Priority, "suggestions", len(analysis.Suggestions))
}

func (s *Scheduler) runSweep() {
	now := s.now()
	if s.limits == nil {
		return
	}
	removed := s.limits.User.Sweep(now) + s.limits.Fast.Sweep(now) + s.limits.Smart.Sweep(now)
	if removed > 0 {
		slog.Debug("Swept rate limiter entries", "removed", removed)
	}
}
