package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Conversation is one chat session's history. Messages are append-only;
// the only other mutation is whole-conversation deletion by the owner.
type Conversation struct {
	SessionID       string        `json:"sessionId"`
	UserID          string        `json:"userId"`
	Messages        []ChatMessage `json:"messages"`
	AgentsSuggested []string      `json:"agentsSuggested"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	Role         string    `json:"role"` // user, assistant, system
	Content      string    `json:"content"`
	AgentUsed    string    `json:"agentUsed,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	VoiceEnabled bool      `json:"voiceEnabled"`
}

// AppendMessage adds one message to a conversation, creating the
// conversation row on first use of the session.
func (s *Store) AppendMessage(sessionID, userID string, msg ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`
	INSERT INTO conversations (session_id, user_id, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, userID, now, now); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	var agentUsed any
	if msg.AgentUsed != "" {
		agentUsed = msg.AgentUsed
	}
	if _, err := tx.Exec(`
	INSERT INTO messages (session_id, role, content, agent_used, voice_enabled, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, msg.Role, msg.Content, agentUsed, msg.VoiceEnabled, msg.Timestamp); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return tx.Commit()
}

// SuggestAgent records that an agent was suggested during a session. The
// suggestion set is deduplicated.
func (s *Store) SuggestAgent(sessionID, agentID string) error {
	var raw string
	err := s.db.QueryRow(`SELECT agents_suggested FROM conversations WHERE session_id = ?`,
		sessionID).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load suggestions: %w", err)
	}

	var suggested []string
	if err := json.Unmarshal([]byte(raw), &suggested); err != nil {
		return fmt.Errorf("decode suggestions: %w", err)
	}
	for _, id := range suggested {
		if id == agentID {
			return nil
		}
	}
	suggested = append(suggested, agentID)

	_, err = s.db.Exec(`UPDATE conversations SET agents_suggested = ? WHERE session_id = ?`,
		mustJSON(suggested), sessionID)
	if err != nil {
		return fmt.Errorf("save suggestions: %w", err)
	}
	return nil
}

// GetConversation loads a conversation with all messages in order,
// scoped to its owner.
func (s *Store) GetConversation(userID, sessionID string) (*Conversation, error) {
	var c Conversation
	var suggested string
	err := s.db.QueryRow(`
	SELECT session_id, user_id, agents_suggested, created_at, updated_at
	FROM conversations WHERE session_id = ? AND user_id = ?`,
		sessionID, userID).
		Scan(&c.SessionID, &c.UserID, &suggested, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(suggested), &c.AgentsSuggested); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	rows, err := s.db.Query(`
	SELECT role, content, agent_used, voice_enabled, timestamp
	FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m ChatMessage
		var agentUsed sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &agentUsed, &m.VoiceEnabled, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AgentUsed = agentUsed.String
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

// RecentMessages returns the last n messages of a session, oldest first.
func (s *Store) RecentMessages(sessionID string, n int) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
	SELECT role, content, agent_used, voice_enabled, timestamp FROM (
		SELECT id, role, content, agent_used, voice_enabled, timestamp
		FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?
	) ORDER BY id`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var agentUsed sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &agentUsed, &m.VoiceEnabled, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AgentUsed = agentUsed.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// AgentRecentMessages returns the last n messages from sessions where the
// agent produced at least one reply, oldest first.
func (s *Store) AgentRecentMessages(agentID string, n int) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
	SELECT role, content, agent_used, voice_enabled, timestamp FROM (
		SELECT id, role, content, agent_used, voice_enabled, timestamp
		FROM messages
		WHERE session_id IN (SELECT DISTINCT session_id FROM messages WHERE agent_used = ?)
		ORDER BY id DESC LIMIT ?
	) ORDER BY id`, agentID, n)
	if err != nil {
		return nil, fmt.Errorf("load agent messages: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var agentUsed sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &agentUsed, &m.VoiceEnabled, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AgentUsed = agentUsed.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its messages. Owner-scoped.
func (s *Store) DeleteConversation(userID, sessionID string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE session_id = ? AND user_id = ?`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneConversations deletes conversations not updated since cutoff and
// returns how many were removed. Cascades to their messages.
func (s *Store) PruneConversations(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune conversations: %w", err)
	}
	return res.RowsAffected()
}
