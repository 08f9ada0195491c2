package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentdesk/agentdesk/internal/agents"
)

// CreateAgent inserts a new agent at version 1.
func (s *Store) CreateAgent(a *agents.Agent) error {
	now := time.Now().UTC()
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.Exec(`
	INSERT INTO agents (id, owner_id, name, description, expertise, system_prompt,
		knowledge_base, capabilities, style, metrics, evolution_history, version,
		created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Description,
		mustJSON(a.Expertise), a.SystemPrompt,
		mustJSON(a.KnowledgeBase), mustJSON(a.Capabilities),
		mustJSON(a.Style), mustJSON(a.Metrics),
		mustJSON(a.EvolutionHistory), a.Version,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetAgent loads one agent scoped to its owner.
func (s *Store) GetAgent(ownerID, id string) (*agents.Agent, error) {
	row := s.db.QueryRow(`
	SELECT id, owner_id, name, description, expertise, system_prompt,
		knowledge_base, capabilities, style, metrics, evolution_history, version,
		created_at, updated_at
	FROM agents WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanAgent(row)
}

// ListAgents returns all agents of one owner, most recently updated first.
func (s *Store) ListAgents(ownerID string) ([]*agents.Agent, error) {
	rows, err := s.db.Query(`
	SELECT id, owner_id, name, description, expertise, system_prompt,
		knowledge_base, capabilities, style, metrics, evolution_history, version,
		created_at, updated_at
	FROM agents WHERE owner_id = ? ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []*agents.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecentlyUsedAgents returns agents whose metrics show use since cutoff,
// across all owners. The scheduler feeds these to evolution analysis.
func (s *Store) RecentlyUsedAgents(cutoff time.Time) ([]*agents.Agent, error) {
	rows, err := s.db.Query(`
	SELECT id, owner_id, name, description, expertise, system_prompt,
		knowledge_base, capabilities, style, metrics, evolution_history, version,
		created_at, updated_at
	FROM agents WHERE updated_at >= ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list recent agents: %w", err)
	}
	defer rows.Close()

	var out []*agents.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		if a.Metrics.LastUsed.After(cutoff) || a.Metrics.LastUsed.Equal(cutoff) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

// UpdateAgent persists an agent's mutable fields and bumps its version.
// The update is owner-scoped and optimistic: it only applies when the
// stored version matches the version the caller loaded.
func (s *Store) UpdateAgent(a *agents.Agent) error {
	res, err := s.db.Exec(`
	UPDATE agents SET name = ?, description = ?, expertise = ?, system_prompt = ?,
		knowledge_base = ?, capabilities = ?, style = ?, metrics = ?,
		evolution_history = ?, version = version + 1, updated_at = ?
	WHERE id = ? AND owner_id = ? AND version = ?`,
		a.Name, a.Description, mustJSON(a.Expertise), a.SystemPrompt,
		mustJSON(a.KnowledgeBase), mustJSON(a.Capabilities),
		mustJSON(a.Style), mustJSON(a.Metrics),
		mustJSON(a.EvolutionHistory), time.Now().UTC(),
		a.ID, a.OwnerID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	a.Version++
	return nil
}

// DeleteAgent removes an agent and, via the schema's cascade, all of its
// skills. Owner-scoped.
func (s *Store) DeleteAgent(ownerID, id string) error {
	res, err := s.db.Exec(`DELETE FROM agents WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*agents.Agent, error) {
	var a agents.Agent
	var expertise, kb, caps, style, metrics, history string
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &expertise,
		&a.SystemPrompt, &kb, &caps, &style, &metrics, &history, &a.Version,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	cols := []struct {
		raw string
		dst any
	}{
		{expertise, &a.Expertise},
		{kb, &a.KnowledgeBase},
		{caps, &a.Capabilities},
		{style, &a.Style},
		{metrics, &a.Metrics},
		{history, &a.EvolutionHistory},
	}
	for _, c := range cols {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return nil, fmt.Errorf("decode agent %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

// mustJSON encodes v, which is always a plain data struct or slice here.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("store: marshal %T: %v", v, err))
	}
	return string(b)
}
