package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UserSettings holds one user's configuration overrides.
type UserSettings struct {
	UserID        string            `json:"userId"`
	APIKeys       map[string]string `json:"apiKeys,omitempty"` // provider -> key override
	Voice         VoiceSettings     `json:"voice"`
	AI            AISettings        `json:"ai"`
	Limits        LimitSettings     `json:"limits"`
	MonthlyBudget float64           `json:"monthlyBudget"`
}

// VoiceSettings configures speech input and output per user.
type VoiceSettings struct {
	Enabled bool   `json:"enabled"`
	Voice   string `json:"voice,omitempty"`
}

// AISettings configures model behavior per user.
type AISettings struct {
	Model          string `json:"model,omitempty"`
	CachingEnabled bool   `json:"cachingEnabled"`
}

// LimitSettings configures per-user usage enforcement.
type LimitSettings struct {
	Enabled            bool    `json:"enabled"`
	MaxTokensPerUser   int     `json:"maxTokensPerUser"`
	MaxRequestsPerHour int     `json:"maxRequestsPerHour"`
	MaxCostPerUser     float64 `json:"maxCostPerUser"`
	RequireAuth        bool    `json:"requireAuth"`
}

// UpdateOp tags one field of a settings patch.
type UpdateOp int

const (
	// OpUnchanged leaves the field as stored.
	OpUnchanged UpdateOp = iota
	// OpRemove resets the field to its zero value (or deletes the key).
	OpRemove
	// OpSet replaces the field with the patch value.
	OpSet
)

// StringPatch updates one string field.
type StringPatch struct {
	Op    UpdateOp
	Value string
}

// BoolPatch updates one bool field.
type BoolPatch struct {
	Op    UpdateOp
	Value bool
}

// IntPatch updates one int field.
type IntPatch struct {
	Op    UpdateOp
	Value int
}

// FloatPatch updates one float field.
type FloatPatch struct {
	Op    UpdateOp
	Value float64
}

// SettingsPatch is an explicit per-field update. Fields left at their zero
// value (OpUnchanged) are not touched; there are no magic sentinel values.
type SettingsPatch struct {
	APIKeys            map[string]StringPatch
	VoiceEnabled       BoolPatch
	VoiceName          StringPatch
	Model              StringPatch
	CachingEnabled     BoolPatch
	LimitsEnabled      BoolPatch
	MaxTokensPerUser   IntPatch
	MaxRequestsPerHour IntPatch
	MaxCostPerUser     FloatPatch
	RequireAuth        BoolPatch
	MonthlyBudget      FloatPatch
}

// GetSettings loads a user's settings, returning defaults for users who
// never saved any.
func (s *Store) GetSettings(userID string) (*UserSettings, error) {
	var raw string
	err := s.db.QueryRow(`SELECT settings FROM user_settings WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return defaultSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	settings := defaultSettings(userID)
	if err := json.Unmarshal([]byte(raw), settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	settings.UserID = userID
	return settings, nil
}

// UpdateSettings applies a patch to a user's settings and persists the
// result. Returns the updated settings.
func (s *Store) UpdateSettings(userID string, patch SettingsPatch) (*UserSettings, error) {
	settings, err := s.GetSettings(userID)
	if err != nil {
		return nil, err
	}
	applyPatch(settings, patch)

	_, err = s.db.Exec(`
	INSERT INTO user_settings (user_id, settings, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at`,
		userID, mustJSON(settings), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return settings, nil
}

func applyPatch(settings *UserSettings, patch SettingsPatch) {
	for provider, p := range patch.APIKeys {
		switch p.Op {
		case OpSet:
			if settings.APIKeys == nil {
				settings.APIKeys = map[string]string{}
			}
			settings.APIKeys[provider] = p.Value
		case OpRemove:
			delete(settings.APIKeys, provider)
		}
	}

	applyBool(&settings.Voice.Enabled, patch.VoiceEnabled)
	applyString(&settings.Voice.Voice, patch.VoiceName)
	applyString(&settings.AI.Model, patch.Model)
	applyBool(&settings.AI.CachingEnabled, patch.CachingEnabled)
	applyBool(&settings.Limits.Enabled, patch.LimitsEnabled)
	applyInt(&settings.Limits.MaxTokensPerUser, patch.MaxTokensPerUser)
	applyInt(&settings.Limits.MaxRequestsPerHour, patch.MaxRequestsPerHour)
	applyFloat(&settings.Limits.MaxCostPerUser, patch.MaxCostPerUser)
	applyBool(&settings.Limits.RequireAuth, patch.RequireAuth)
	applyFloat(&settings.MonthlyBudget, patch.MonthlyBudget)
}

func applyString(dst *string, p StringPatch) {
	switch p.Op {
	case OpSet:
		*dst = p.Value
	case OpRemove:
		*dst = ""
	}
}

func applyBool(dst *bool, p BoolPatch) {
	switch p.Op {
	case OpSet:
		*dst = p.Value
	case OpRemove:
		*dst = false
	}
}

func applyInt(dst *int, p IntPatch) {
	switch p.Op {
	case OpSet:
		*dst = p.Value
	case OpRemove:
		*dst = 0
	}
}

func applyFloat(dst *float64, p FloatPatch) {
	switch p.Op {
	case OpSet:
		*dst = p.Value
	case OpRemove:
		*dst = 0
	}
}

func defaultSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID: userID,
		Voice:  VoiceSettings{Enabled: false},
		AI:     AISettings{CachingEnabled: true},
	}
}
