package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.LLM.Provider != ProviderCustom {
		t.Errorf("default provider = %q, want %q", cfg.LLM.Provider, ProviderCustom)
	}
	if cfg.LLM.SlidingWindow != -1 {
		t.Errorf("default sliding_window = %d, want -1", cfg.LLM.SlidingWindow)
	}
	if cfg.Scheduler.TickSeconds != 60 {
		t.Errorf("default tick_seconds = %d, want 60", cfg.Scheduler.TickSeconds)
	}
	if cfg.Scheduler.TaskTimeoutMinutes != 20 {
		t.Errorf("default task_timeout_minutes = %d, want 20", cfg.Scheduler.TaskTimeoutMinutes)
	}
	pc, ok := cfg.Provider(ProviderCustom)
	if !ok || pc.BaseURL == "" {
		t.Error("expected custom provider to carry a default base_url")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	doc := `
log_level: debug
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
  sliding_window: 20
  cache_prompts: true
  providers:
    anthropic:
      api_key: test-key
telegram:
  token: "123:abc"
scheduler:
  tick_seconds: 30
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "soul.md"), []byte("You are {{.BotName}}."), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.LLM.Provider != ProviderAnthropic {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.SlidingWindow != 20 {
		t.Errorf("sliding_window = %d, want 20", cfg.LLM.SlidingWindow)
	}
	if !cfg.LLM.CachePrompts {
		t.Error("cache_prompts not set")
	}
	if cfg.Soul == "" {
		t.Error("soul.md not loaded")
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("telegram token = %q", cfg.Telegram.Token)
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"empty", "", false},
		{"valid", "llm:\n  provider: openai\n", false},
		{"bad provider", "llm:\n  provider: llamacpp\n", true},
		{"bad window", "llm:\n  sliding_window: -2\n", true},
		{"bad exporter", "otel:\n  exporter: jaeger\n", true},
		{"wrong type", "scheduler:\n  tick_seconds: often\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("llm:\n  provider: 42\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(dir); err == nil {
		t.Fatal("expected error for invalid config")
	}
}
