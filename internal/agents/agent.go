package agents

import "time"

// Agent is a persona the chat pipeline can route questions to. Each agent
// belongs to exactly one owner and only that owner may mutate it.
type Agent struct {
	ID               string             `json:"id"`
	OwnerID          string             `json:"ownerId"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Expertise        []string           `json:"expertise"`
	SystemPrompt     string             `json:"systemPrompt"`
	KnowledgeBase    KnowledgeBase      `json:"knowledgeBase"`
	Capabilities     []string           `json:"capabilities"`
	Style            ConversationStyle  `json:"conversationStyle"`
	Metrics          PerformanceMetrics `json:"performanceMetrics"`
	EvolutionHistory []EvolutionEntry   `json:"evolutionHistory"`
	Version          int                `json:"version"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// KnowledgeBase holds the facts an agent answers from and where they came
// from.
type KnowledgeBase struct {
	Facts       []string  `json:"facts"`
	Sources     []string  `json:"sources"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// ConversationStyle tunes how an agent phrases its answers.
type ConversationStyle struct {
	Tone           string `json:"tone"`
	Vocabulary     string `json:"vocabulary"`
	ResponseLength string `json:"responseLength"`
}

// PerformanceMetrics accumulates routing outcomes for one agent.
type PerformanceMetrics struct {
	QuestionsHandled int           `json:"questionsHandled"`
	SuccessRate      float64       `json:"successRate"` // 0..1
	AvgResponseTime  time.Duration `json:"avgResponseTime"`
	LastUsed         time.Time     `json:"lastUsed"`
}

// EvolutionEntry records one applied evolution step.
type EvolutionEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Changes   []string  `json:"changes"`
}

// History is append-only and bounded; the oldest entries are dropped.
const maxEvolutionHistory = 20

// RecordEvolution appends an entry to the agent's evolution history,
// dropping the oldest entries beyond the cap.
func (a *Agent) RecordEvolution(entry EvolutionEntry) {
	a.EvolutionHistory = append(a.EvolutionHistory, entry)
	if n := len(a.EvolutionHistory); n > maxEvolutionHistory {
		a.EvolutionHistory = a.EvolutionHistory[n-maxEvolutionHistory:]
	}
}

// RecordOutcome folds one handled question into the agent's metrics using
// a running average for response time and success rate.
func (m *PerformanceMetrics) RecordOutcome(success bool, elapsed time.Duration, at time.Time) {
	prev := float64(m.QuestionsHandled)
	m.QuestionsHandled++
	n := float64(m.QuestionsHandled)

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	m.SuccessRate = (m.SuccessRate*prev + outcome) / n
	m.AvgResponseTime = time.Duration((float64(m.AvgResponseTime)*prev + float64(elapsed)) / n)
	m.LastUsed = at
}
