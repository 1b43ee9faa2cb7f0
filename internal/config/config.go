// Package config loads Golabot configuration from ~/.golabot/config.yaml
// with environment variable overrides. The parsed document is validated
// against an embedded JSON schema before it is used.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in the llm.provider field.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderCustom    = "custom" // any OpenAI-compatible endpoint
)

// ProviderConfig holds per-provider credentials and endpoint settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // custom/OpenAI-compatible only
	Model   string `yaml:"model"`    // provider-level default model
}

// LLMConfig selects the active provider and model.
type LLMConfig struct {
	// Provider is one of: anthropic, openai, google, custom.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model when set.
	Model string `yaml:"model"`

	// SlidingWindow is the number of most-recent non-system messages
	// included in an assembled conversation. -1 keeps the whole history.
	SlidingWindow int `yaml:"sliding_window"`

	// CachePrompts enables the disk-backed completion cache.
	CachePrompts bool `yaml:"cache_prompts"`

	Providers map[string]ProviderConfig `yaml:"providers"`
}

// TelegramConfig holds the channel transport settings.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// SchedulerConfig tunes the recurring task runner.
type SchedulerConfig struct {
	// TickSeconds is the evaluation interval. Default 60.
	TickSeconds int `yaml:"tick_seconds"`

	// TaskTimeoutMinutes bounds a single task execution. Default 20.
	TaskTimeoutMinutes int `yaml:"task_timeout_minutes"`

	// Workers caps concurrent task executions. Default 4.
	Workers int `yaml:"workers"`
}

// OtelConfig configures tracing/metrics export.
type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // otlp-http, stdout, none
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	LogLevel string `yaml:"log_level"`

	LLM       LLMConfig       `yaml:"llm"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Otel      OtelConfig      `yaml:"otel"`

	// APIKeys holds keys for tools (e.g. "brave_search").
	APIKeys map[string]string `yaml:"api_keys"`

	// Soul is the persona/system preamble template, loaded from soul.md
	// next to config.yaml. Hot-reloaded by the Watcher.
	Soul string `yaml:"-"`
}

// DefaultHomeDir returns ~/.golabot, honoring the GOLABOT_HOME override.
func DefaultHomeDir() string {
	if dir := os.Getenv("GOLABOT_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".golabot")
}

// Load reads, validates, and defaults the configuration.
func Load() (*Config, error) {
	return LoadFrom(DefaultHomeDir())
}

// LoadFrom loads configuration from the given home directory. A missing
// config.yaml yields a default config (env overrides still apply).
func LoadFrom(homeDir string) (*Config, error) {
	cfg := &Config{HomeDir: homeDir}

	path := filepath.Join(homeDir, "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := ValidateDocument(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// First run: defaults + env only.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if soul, err := os.ReadFile(filepath.Join(homeDir, "soul.md")); err == nil {
		cfg.Soul = string(soul)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_SLIDING_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.SlidingWindow = n
		}
	}

	envKeys := map[string]string{
		ProviderAnthropic: "ANTHROPIC_API_KEY",
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderGoogle:    "GEMINI_API_KEY",
		ProviderCustom:    "CUSTOM_API_KEY",
	}
	for provider, envVar := range envKeys {
		v := os.Getenv(envVar)
		if v == "" {
			continue
		}
		if c.LLM.Providers == nil {
			c.LLM.Providers = map[string]ProviderConfig{}
		}
		pc := c.LLM.Providers[provider]
		if pc.APIKey == "" {
			pc.APIKey = v
			c.LLM.Providers[provider] = pc
		}
	}
	if v := os.Getenv("CUSTOM_BASE_URL"); v != "" {
		pc := c.LLM.Providers[ProviderCustom]
		pc.BaseURL = v
		c.LLM.Providers[ProviderCustom] = pc
	}
	if v := os.Getenv("BRAVE_SEARCH_API_KEY"); v != "" {
		if c.APIKeys == nil {
			c.APIKeys = map[string]string{}
		}
		if c.APIKeys["brave_search"] == "" {
			c.APIKeys["brave_search"] = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderCustom
	}
	if c.LLM.SlidingWindow == 0 {
		c.LLM.SlidingWindow = -1
	}
	if c.Scheduler.TickSeconds <= 0 {
		c.Scheduler.TickSeconds = 60
	}
	if c.Scheduler.TaskTimeoutMinutes <= 0 {
		c.Scheduler.TaskTimeoutMinutes = 20
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 4
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = map[string]ProviderConfig{}
	}
	if pc, ok := c.LLM.Providers[ProviderCustom]; !ok || pc.BaseURL == "" {
		pc.BaseURL = "http://localhost:11434/v1" // ollama
		if pc.APIKey == "" {
			pc.APIKey = "ollama"
		}
		c.LLM.Providers[ProviderCustom] = pc
	}
}

// Provider returns the config block for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	pc, ok := c.LLM.Providers[strings.ToLower(strings.TrimSpace(name))]
	return pc, ok
}

// APIKey returns the tool API key for name, or "".
func (c *Config) APIKey(name string) string {
	return c.APIKeys[name]
}

// DBPath returns the SQLite database path under the home directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.HomeDir, "golabot.db")
}

// CacheDir returns the prompt cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.HomeDir, "cache")
}

// FilesDir returns where downloaded attachments are stored.
func (c *Config) FilesDir() string {
	return filepath.Join(c.HomeDir, "files")
}
