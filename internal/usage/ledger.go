// Package usage tracks per-call cost records: a ledger over the store for
// aggregation and budget checks, plus an async recorder for the chat path.
package usage

import (
	"fmt"
	"time"

	"github.com/agentdesk/agentdesk/internal/pricing"
	"github.com/agentdesk/agentdesk/internal/store"
)

// rollingWindow is the default summary lookback.
const rollingWindow = 30 * 24 * time.Hour

// ServiceUsage aggregates one service's records.
type ServiceUsage struct {
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CachedTokens int     `json:"cachedTokens"`
	Characters   int     `json:"characters"`
	Cost         float64 `json:"cost"`
}

// Summary aggregates one user's usage over a time range.
type Summary struct {
	UserID    string                  `json:"userId"`
	Start     time.Time               `json:"start"`
	End       time.Time               `json:"end"`
	Requests  int                     `json:"requests"`
	TotalCost float64                 `json:"totalCost"`
	Services  map[string]ServiceUsage `json:"services"`
}

// BudgetStatus compares rolling-month spend to the user's monthly budget.
type BudgetStatus struct {
	UserID     string  `json:"userId"`
	Budget     float64 `json:"budget"` // 0 means no budget set
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	OverBudget bool    `json:"overBudget"`
}

// Ledger reads and aggregates usage records.
type Ledger struct {
	store *store.Store
	table pricing.Table
	now   func() time.Time
}

// NewLedger creates a ledger over the store with the given pricing table.
func NewLedger(st *store.Store, table pricing.Table) *Ledger {
	return &Ledger{store: st, table: table, now: time.Now}
}

// Record prices and persists one usage record. Cost is always recomputed
// from the record's token and character counts.
func (l *Ledger) Record(log *store.UsageLog) error {
	log.Cost = CostFor(l.table, log)
	return l.store.InsertUsageLog(log)
}

// CostFor prices one record from its token or character counts.
func CostFor(table pricing.Table, log *store.UsageLog) float64 {
	switch log.Service {
	case store.ServiceChatFast:
		return table.TokenCost(pricing.TierFast, log.InputTokens, log.OutputTokens, log.CachedTokens)
	case store.ServiceChatSmart:
		return table.TokenCost(pricing.TierSmart, log.InputTokens, log.OutputTokens, log.CachedTokens)
	case store.ServiceTTS, store.ServiceBrowserSpeech:
		return table.VoiceCost(log.Characters)
	}
	return 0
}

// Summary aggregates the rolling 30-day window ending now.
func (l *Ledger) Summary(userID string) (*Summary, error) {
	end := l.now().UTC()
	return l.Breakdown(userID, end.Add(-rollingWindow), end)
}

// Breakdown aggregates usage in [start, end).
func (l *Ledger) Breakdown(userID string, start, end time.Time) (*Summary, error) {
	logs, err := l.store.UsageBetween(userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}

	summary := &Summary{
		UserID:   userID,
		Start:    start.UTC(),
		End:      end.UTC(),
		Services: map[string]ServiceUsage{},
	}
	for _, log := range logs {
		svc := summary.Services[log.Service]
		svc.Requests++
		svc.InputTokens += log.InputTokens
		svc.OutputTokens += log.OutputTokens
		svc.CachedTokens += log.CachedTokens
		svc.Characters += log.Characters
		svc.Cost += log.Cost
		summary.Services[log.Service] = svc

		summary.Requests++
		summary.TotalCost += log.Cost
	}
	return summary, nil
}

// BudgetStatus reports rolling-month spend against the user's monthly
// budget. A zero budget means unlimited and is never over budget.
func (l *Ledger) BudgetStatus(userID string) (*BudgetStatus, error) {
	settings, err := l.store.GetSettings(userID)
	if err != nil {
		return nil, err
	}
	summary, err := l.Summary(userID)
	if err != nil {
		return nil, err
	}

	status := &BudgetStatus{
		UserID: userID,
		Budget: settings.MonthlyBudget,
		Spent:  summary.TotalCost,
	}
	if status.Budget > 0 {
		status.Remaining = status.Budget - status.Spent
		status.OverBudget = status.Spent >= status.Budget
	}
	return status, nil
}

// RecalculateCosts rewrites every stored cost from its token and character
// counts using table. Running it twice with the same table changes nothing.
// Returns the number of records whose cost changed.
func (l *Ledger) RecalculateCosts(table pricing.Table) (int, error) {
	logs, err := l.store.AllUsage()
	if err != nil {
		return 0, fmt.Errorf("recalculate costs: %w", err)
	}

	changed := 0
	for _, log := range logs {
		want := CostFor(table, &log)
		if want == log.Cost {
			continue
		}
		if err := l.store.UpdateUsageCost(log.ID, want); err != nil {
			return changed, fmt.Errorf("recalculate costs: %w", err)
		}
		changed++
	}
	return changed, nil
}
