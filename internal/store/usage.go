package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Services a usage log can be recorded against.
const (
	ServiceChatFast      = "chat-fast"
	ServiceChatSmart     = "chat-smart"
	ServiceTTS           = "tts"
	ServiceBrowserSpeech = "browser-speech"
)

// UsageLog is one immutable per-call billing record. The only sanctioned
// bulk mutation is administrative cost recalculation.
type UsageLog struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId"`
	Timestamp      time.Time `json:"timestamp"`
	Service        string    `json:"service"`
	InputTokens    int       `json:"inputTokens"`
	OutputTokens   int       `json:"outputTokens"`
	CachedTokens   int       `json:"cachedTokens"`
	Characters     int       `json:"characters"`
	Cost           float64   `json:"cost"`
	Success        bool      `json:"success"`
	AgentID        string    `json:"agentId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Model          string    `json:"model,omitempty"`
	CachingEnabled bool      `json:"cachingEnabled"`
}

// InsertUsageLog appends one usage record.
func (s *Store) InsertUsageLog(log *UsageLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	res, err := s.db.Exec(`
	INSERT INTO usage_logs (user_id, timestamp, service, input_tokens, output_tokens,
		cached_tokens, characters, cost, success, agent_id, conversation_id, model,
		caching_enabled)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.UserID, log.Timestamp, log.Service, log.InputTokens, log.OutputTokens,
		log.CachedTokens, log.Characters, log.Cost, log.Success,
		nullable(log.AgentID), nullable(log.ConversationID), log.Model,
		log.CachingEnabled,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	log.ID, _ = res.LastInsertId()
	return nil
}

// UsageBetween returns one user's logs in [start, end), oldest first.
func (s *Store) UsageBetween(userID string, start, end time.Time) ([]UsageLog, error) {
	rows, err := s.db.Query(`
	SELECT id, user_id, timestamp, service, input_tokens, output_tokens,
		cached_tokens, characters, cost, success, agent_id, conversation_id,
		model, caching_enabled
	FROM usage_logs
	WHERE user_id = ? AND timestamp >= ? AND timestamp < ?
	ORDER BY timestamp`, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	return collectUsage(rows)
}

// AllUsage returns every usage log, oldest first. Administrative use only.
func (s *Store) AllUsage() ([]UsageLog, error) {
	rows, err := s.db.Query(`
	SELECT id, user_id, timestamp, service, input_tokens, output_tokens,
		cached_tokens, characters, cost, success, agent_id, conversation_id,
		model, caching_enabled
	FROM usage_logs ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	return collectUsage(rows)
}

// UpdateUsageCost rewrites the cost of one record. Used only by
// administrative cost recalculation.
func (s *Store) UpdateUsageCost(id int64, cost float64) error {
	_, err := s.db.Exec(`UPDATE usage_logs SET cost = ? WHERE id = ?`, cost, id)
	if err != nil {
		return fmt.Errorf("update usage cost: %w", err)
	}
	return nil
}

// PruneUsageLogs deletes records older than cutoff and returns the count.
func (s *Store) PruneUsageLogs(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM usage_logs WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune usage logs: %w", err)
	}
	return res.RowsAffected()
}

func collectUsage(rows *sql.Rows) ([]UsageLog, error) {
	defer rows.Close()
	var out []UsageLog
	for rows.Next() {
		var log UsageLog
		var agentID, convID sql.NullString
		if err := rows.Scan(&log.ID, &log.UserID, &log.Timestamp, &log.Service,
			&log.InputTokens, &log.OutputTokens, &log.CachedTokens, &log.Characters,
			&log.Cost, &log.Success, &agentID, &convID, &log.Model,
			&log.CachingEnabled); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		log.AgentID = agentID.String
		log.ConversationID = convID.String
		out = append(out, log)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
