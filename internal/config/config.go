package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the coachd configuration
type Config struct {
	// HTTP server settings
	Addr string `yaml:"addr"` // Listen address (default: :8484)

	// Data settings
	DataDir string `yaml:"data_dir"` // Directory holding the sqlite database

	// Auth settings
	JWTSecret string `yaml:"jwt_secret"` // HMAC secret for API tokens
	TokenTTL  int    `yaml:"token_ttl"`  // Token lifetime in seconds (default: 86400)

	// Model provider settings
	Provider ProviderConfig `yaml:"provider"`

	// Coaching session settings
	Session SessionConfig `yaml:"session"`

	// Housekeeping settings
	Janitor JanitorConfig `yaml:"janitor"`
}

// ProviderConfig holds configuration for the model gateway
type ProviderConfig struct {
	Name    string `yaml:"name"`               // "openai", "anthropic", "gemini", or "ollama"
	APIKey  string `yaml:"api_key,omitempty"`  // For API providers
	Model   string `yaml:"model,omitempty"`    // Model to use
	BaseURL string `yaml:"base_url,omitempty"` // For Ollama (default: http://localhost:11434)
}

// SessionConfig holds tunables for the coaching session orchestrator
type SessionConfig struct {
	HistoryWindow    int           `yaml:"history_window"`     // Turns rendered into the prompt (default: 10)
	SummaryTokens    int           `yaml:"summary_tokens"`     // Token budget for the rolling summary (default: 1000)
	GatewayTimeout   time.Duration `yaml:"gateway_timeout"`    // Per-call model timeout (default: 90s)
	LabelEveryTurn   bool          `yaml:"label_every_turn"`   // Retry label generation on each turn while empty
	SaveQueueWorkers int           `yaml:"save_queue_workers"` // Upper bound on concurrent per-session save workers (0 = unlimited)
}

// JanitorConfig holds settings for the stale-session sweeper
type JanitorConfig struct {
	Enabled     bool   `yaml:"enabled"`       // Run the daily sweep (default: true)
	Schedule    string `yaml:"schedule"`      // Cron schedule (default: "0 3 * * *")
	MaxIdleDays int    `yaml:"max_idle_days"` // Deactivate sessions idle longer than this (default: 30)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:      ":8484",
		DataDir:   ".coachd",
		JWTSecret: "",
		TokenTTL:  86400,
		Provider: ProviderConfig{
			Name: "openai",
		},
		Session: SessionConfig{
			HistoryWindow:  10,
			SummaryTokens:  1000,
			GatewayTimeout: 90 * time.Second,
			LabelEveryTurn: true,
		},
		Janitor: JanitorConfig{
			Enabled:     true,
			Schedule:    "0 3 * * *",
			MaxIdleDays: 30,
		},
	}
}

// Load loads config from the given path, falling back to defaults when the
// file does not exist. Environment variables referenced in string values
// (e.g. api_key: ${OPENAI_API_KEY}) are expanded.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.expandEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand ~ in DataDir (config file may have a tilde path)
	if strings.HasPrefix(cfg.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		cfg.DataDir = filepath.Join(home, cfg.DataDir[2:])
	}

	cfg.expandEnv()
	return cfg, nil
}

func (c *Config) expandEnv() {
	c.JWTSecret = os.ExpandEnv(c.JWTSecret)
	c.Provider.APIKey = os.ExpandEnv(c.Provider.APIKey)
	c.Provider.BaseURL = os.ExpandEnv(c.Provider.BaseURL)

	// Env vars win over file values for credentials
	if v := os.Getenv("COACHD_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("COACHD_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
}

// DBPath returns the path to the sqlite database
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "coachd.db")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}
