package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentdesk/agentdesk/internal/skills"
)

// CreateSkill inserts a skill attached to an existing agent.
func (s *Store) CreateSkill(sk *skills.Skill) error {
	now := time.Now().UTC()
	sk.CreatedAt = now
	sk.UpdatedAt = now
	if sk.Version == "" {
		sk.Version = "1.0.0"
	}

	_, err := s.db.Exec(`
	INSERT INTO skills (id, agent_id, name, description, version, content,
		resources, metadata, usage, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sk.ID, sk.AgentID, sk.Name, sk.Description, sk.Version, sk.Content,
		mustJSON(sk.Resources), mustJSON(sk.Metadata), mustJSON(sk.Usage),
		sk.CreatedAt, sk.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert skill: %w", err)
	}
	return nil
}

// GetSkill loads one skill.
func (s *Store) GetSkill(id string) (*skills.Skill, error) {
	row := s.db.QueryRow(`
	SELECT id, agent_id, name, description, version, content, resources,
		metadata, usage, created_at, updated_at
	FROM skills WHERE id = ?`, id)
	return scanSkill(row)
}

// ListSkills returns all skills of one agent.
func (s *Store) ListSkills(agentID string) ([]*skills.Skill, error) {
	rows, err := s.db.Query(`
	SELECT id, agent_id, name, description, version, content, resources,
		metadata, usage, created_at, updated_at
	FROM skills WHERE agent_id = ? ORDER BY name`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []*skills.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// UpdateSkill persists a skill's mutable fields.
func (s *Store) UpdateSkill(sk *skills.Skill) error {
	res, err := s.db.Exec(`
	UPDATE skills SET name = ?, description = ?, version = ?, content = ?,
		resources = ?, metadata = ?, usage = ?, updated_at = ?
	WHERE id = ?`,
		sk.Name, sk.Description, sk.Version, sk.Content,
		mustJSON(sk.Resources), mustJSON(sk.Metadata), mustJSON(sk.Usage),
		time.Now().UTC(), sk.ID,
	)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSkill removes one skill.
func (s *Store) DeleteSkill(id string) error {
	res, err := s.db.Exec(`DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSkill(row rowScanner) (*skills.Skill, error) {
	var sk skills.Skill
	var resources, metadata, usage string
	err := row.Scan(&sk.ID, &sk.AgentID, &sk.Name, &sk.Description, &sk.Version,
		&sk.Content, &resources, &metadata, &usage, &sk.CreatedAt, &sk.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan skill: %w", err)
	}
	cols := []struct {
		raw string
		dst any
	}{
		{resources, &sk.Resources},
		{metadata, &sk.Metadata},
		{usage, &sk.Usage},
	}
	for _, c := range cols {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return nil, fmt.Errorf("decode skill %s: %w", sk.ID, err)
		}
	}
	return &sk, nil
}
