package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/avramovic/golabot/internal/config"
)

func loadTestConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	home := t.TempDir()
	if yaml != "" {
		if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.LoadFrom(home)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	return cfg
}

func findResult(t *testing.T, d Diagnosis, name string) CheckResult {
	t.Helper()
	for _, res := range d.Results {
		if res.Name == name {
			return res
		}
	}
	t.Fatalf("no check named %q in %+v", name, d.Results)
	return CheckResult{}
}

func TestNilConfigSkipsChecks(t *testing.T) {
	d := Run(context.Background(), nil, "test")
	for _, res := range d.Results {
		if res.Status == "PASS" {
			t.Errorf("check %q passed with nil config", res.Name)
		}
	}
}

func TestMissingConfigFileWarns(t *testing.T) {
	cfg := loadTestConfig(t, "")
	res := checkConfig(context.Background(), cfg)
	if res.Status != "WARN" {
		t.Errorf("status = %s, want WARN", res.Status)
	}
}

func TestProviderKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := loadTestConfig(t, "llm:\n  provider: anthropic\n")
	res := checkProviderKey(context.Background(), cfg)
	if res.Status != "FAIL" {
		t.Errorf("status = %s, want FAIL", res.Status)
	}
}

func TestProviderKeyPresent(t *testing.T) {
	cfg := loadTestConfig(t, "llm:\n  provider: anthropic\n  providers:\n    anthropic:\n      api_key: sk-test\n")
	res := checkProviderKey(context.Background(), cfg)
	if res.Status != "PASS" {
		t.Errorf("status = %s, want PASS: %s", res.Status, res.Message)
	}
}

func TestCustomProviderNeedsModel(t *testing.T) {
	cfg := loadTestConfig(t, "llm:\n  provider: custom\n")
	res := checkProviderKey(context.Background(), cfg)
	if res.Status != "FAIL" {
		t.Errorf("status = %s, want FAIL (no model): %s", res.Status, res.Message)
	}

	cfg = loadTestConfig(t, "llm:\n  provider: custom\n  model: llama3\n")
	res = checkProviderKey(context.Background(), cfg)
	if res.Status != "PASS" {
		t.Errorf("status = %s, want PASS: %s", res.Status, res.Message)
	}
}

func TestTelegramTokenCheck(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	cfg := loadTestConfig(t, "")
	if res := checkTelegramToken(context.Background(), cfg); res.Status != "FAIL" {
		t.Errorf("no token: status = %s, want FAIL", res.Status)
	}

	cfg.Telegram.Token = "not-a-token"
	if res := checkTelegramToken(context.Background(), cfg); res.Status != "WARN" {
		t.Errorf("malformed token: status = %s, want WARN", res.Status)
	}

	cfg.Telegram.Token = "123456789:AAF0123456789abcdefghijklmnopqrstuvwxyz"
	if res := checkTelegramToken(context.Background(), cfg); res.Status != "PASS" {
		t.Errorf("valid token: status = %s, want PASS", res.Status)
	}
}

func TestDatabaseCheckCreatesAndQueries(t *testing.T) {
	cfg := loadTestConfig(t, "")
	res := checkDatabase(context.Background(), cfg)
	if res.Status != "PASS" {
		t.Errorf("status = %s, want PASS: %s", res.Status, res.Message)
	}
}

func TestBraveKeyWarnsWhenMissing(t *testing.T) {
	t.Setenv("BRAVE_SEARCH_API_KEY", "")
	cfg := loadTestConfig(t, "")
	if res := checkBraveKey(context.Background(), cfg); res.Status != "WARN" {
		t.Errorf("status = %s, want WARN", res.Status)
	}

	cfg.APIKeys = map[string]string{"brave_search": "k"}
	if res := checkBraveKey(context.Background(), cfg); res.Status != "PASS" {
		t.Errorf("status = %s, want PASS", res.Status)
	}
}
