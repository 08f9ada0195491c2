// Package config provides configuration types and loading for agentdesk.
package config

import "path/filepath"

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	AI        AIConfig        `json:"ai"`
	Search    SearchConfig    `json:"search"`
	Gateway   GatewayConfig   `json:"gateway"`
	Limits    LimitsConfig    `json:"limits"`
	Kafka     KafkaConfig     `json:"kafka"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Log       LogConfig       `json:"log"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// DBPath returns the sqlite database location.
func (p PathsConfig) DBPath() string {
	return filepath.Join(p.DataDir, "agentdesk.db")
}

// AIConfig groups the model provider settings. The fast model serves
// matching and ranking, the smart model serves generation and answers.
type AIConfig struct {
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase" envconfig:"API_BASE"`
	FastModel   string  `json:"fastModel" envconfig:"FAST_MODEL"`
	SmartModel  string  `json:"smartModel" envconfig:"SMART_MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// SearchConfig groups web search settings for knowledge base generation.
type SearchConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
}

// GatewayConfig groups the HTTP surface settings.
type GatewayConfig struct {
	Addr      string `json:"addr" envconfig:"ADDR"`
	AuthToken string `json:"authToken" envconfig:"AUTH_TOKEN"`
}

// LimitsConfig groups rate-limit windows (requests per minute).
type LimitsConfig struct {
	UserPerMinute  int `json:"userPerMinute" envconfig:"USER_PER_MINUTE"`
	FastPerMinute  int `json:"fastPerMinute" envconfig:"FAST_PER_MINUTE"`
	SmartPerMinute int `json:"smartPerMinute" envconfig:"SMART_PER_MINUTE"`
}

// KafkaConfig groups the optional usage export.
type KafkaConfig struct {
	Enabled   bool   `json:"enabled" envconfig:"ENABLED"`
	Bootstrap string `json:"bootstrap" envconfig:"BOOTSTRAP"`
	Topic     string `json:"topic" envconfig:"TOPIC"`
}

// SchedulerConfig groups background job settings.
type SchedulerConfig struct {
	Enabled               bool   `json:"enabled" envconfig:"ENABLED"`
	RetentionCron         string `json:"retentionCron" envconfig:"RETENTION_CRON"`
	EvolutionCron         string `json:"evolutionCron" envconfig:"EVOLUTION_CRON"`
	SweepCron             string `json:"sweepCron" envconfig:"SWEEP_CRON"`
	ConversationKeepDays  int    `json:"conversationKeepDays" envconfig:"CONVERSATION_KEEP_DAYS"`
	UsageKeepDays         int    `json:"usageKeepDays" envconfig:"USAGE_KEEP_DAYS"`
	EvolutionLookbackDays int    `json:"evolutionLookbackDays" envconfig:"EVOLUTION_LOOKBACK_DAYS"`
}

// LogConfig groups logging settings.
type LogConfig struct {
	Level string `json:"level" envconfig:"LEVEL"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{DataDir: "."},
		AI: AIConfig{
			APIBase:     "https://api.openai.com/v1",
			FastModel:   "gpt-4o-mini",
			SmartModel:  "gpt-4o",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
		Gateway: GatewayConfig{Addr: ":8080"},
		Limits: LimitsConfig{
			UserPerMinute:  50,
			FastPerMinute:  100,
			SmartPerMinute: 50,
		},
		Kafka: KafkaConfig{Topic: "agentdesk.usage"},
		Scheduler: SchedulerConfig{
			Enabled:               true,
			RetentionCron:         "30 3 * * *",
			EvolutionCron:         "0 4 * * *",
			SweepCron:             "*/10 * * * *",
			ConversationKeepDays:  90,
			UsageKeepDays:         365,
			EvolutionLookbackDays: 7,
		},
		Log: LogConfig{Level: "info"},
	}
}
