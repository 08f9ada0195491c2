package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".agentdesk"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. AGENTDESK_CONFIG
// overrides the default ~/.agentdesk/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("AGENTDESK_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	envconfig.Process("AGENTDESK_PATHS", &cfg.Paths)
	envconfig.Process("AGENTDESK_AI", &cfg.AI)
	envconfig.Process("AGENTDESK_SEARCH", &cfg.Search)
	envconfig.Process("AGENTDESK_GATEWAY", &cfg.Gateway)
	envconfig.Process("AGENTDESK_LIMITS", &cfg.Limits)
	envconfig.Process("AGENTDESK_KAFKA", &cfg.Kafka)
	envconfig.Process("AGENTDESK_SCHEDULER", &cfg.Scheduler)
	envconfig.Process("AGENTDESK_LOG", &cfg.Log)
	return cfg, nil
}

// Save writes the configuration to the default path, creating the config
// directory when missing.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
