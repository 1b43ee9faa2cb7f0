// Package doctor runs environment diagnostics: configuration, provider
// credentials, the Telegram token, storage and network reachability.
package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/avramovic/golabot/internal/config"
	"github.com/avramovic/golabot/internal/store"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "PASS", "FAIL", "WARN", "SKIP"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	System    SystemInfo    `json:"system"`
	Results   []CheckResult `json:"results"`
}

type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Go      string `json:"go_version"`
	Version string `json:"version"`
}

// telegramTokenShape is the <bot-id>:<secret> format the Bot API issues.
var telegramTokenShape = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]{30,}$`)

// Run executes all diagnostic checks.
func Run(ctx context.Context, cfg *config.Config, version string) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		System: SystemInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Go:      runtime.Version(),
			Version: version,
		},
	}

	checks := []func(context.Context, *config.Config) CheckResult{
		checkHomeDir,
		checkConfig,
		checkProviderKey,
		checkTelegramToken,
		checkDatabase,
		checkBraveKey,
		checkNetwork,
	}

	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}

	return d
}

func checkHomeDir(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Home", Status: "SKIP", Message: "Config missing"}
	}
	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return CheckResult{Name: "Home", Status: "FAIL", Message: fmt.Sprintf("Cannot create %s: %v", cfg.HomeDir, err)}
	}
	testFile := filepath.Join(cfg.HomeDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return CheckResult{Name: "Home", Status: "FAIL", Message: fmt.Sprintf("Home dir unwritable: %v", err)}
	}
	os.Remove(testFile)
	return CheckResult{Name: "Home", Status: "PASS", Message: fmt.Sprintf("%s writable", cfg.HomeDir)}
}

func checkConfig(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Config", Status: "FAIL", Message: "Configuration not loaded"}
	}
	path := filepath.Join(cfg.HomeDir, "config.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Config",
			Status:  "WARN",
			Message: "No config.yaml, running on defaults and environment",
			Detail:  fmt.Sprintf("Create %s to configure providers", path),
		}
	}
	return CheckResult{Name: "Config", Status: "PASS", Message: fmt.Sprintf("Loaded from %s", path)}
}

func checkProviderKey(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "LLM Provider", Status: "SKIP", Message: "Config missing"}
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	pc, _ := cfg.Provider(provider)

	switch provider {
	case config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle:
		if pc.APIKey == "" {
			envVars := map[string]string{
				config.ProviderAnthropic: "ANTHROPIC_API_KEY",
				config.ProviderOpenAI:    "OPENAI_API_KEY",
				config.ProviderGoogle:    "GEMINI_API_KEY",
			}
			return CheckResult{
				Name:    "LLM Provider",
				Status:  "FAIL",
				Message: fmt.Sprintf("No API key for provider %q", provider),
				Detail:  fmt.Sprintf("Set %s or llm.providers.%s.api_key", envVars[provider], provider),
			}
		}
		return CheckResult{Name: "LLM Provider", Status: "PASS", Message: fmt.Sprintf("%s key configured", provider)}

	case config.ProviderCustom:
		if pc.BaseURL == "" {
			return CheckResult{Name: "LLM Provider", Status: "FAIL", Message: "custom provider has no base_url"}
		}
		if cfg.LLM.Model == "" && pc.Model == "" {
			return CheckResult{
				Name:    "LLM Provider",
				Status:  "FAIL",
				Message: "custom provider needs an explicit model",
				Detail:  "Set llm.model or llm.providers.custom.model",
			}
		}
		return CheckResult{Name: "LLM Provider", Status: "PASS", Message: fmt.Sprintf("custom endpoint %s", pc.BaseURL)}

	default:
		return CheckResult{Name: "LLM Provider", Status: "FAIL", Message: fmt.Sprintf("Unknown provider %q", provider)}
	}
}

func checkTelegramToken(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Telegram", Status: "SKIP", Message: "Config missing"}
	}
	token := cfg.Telegram.Token
	if token == "" {
		return CheckResult{
			Name:    "Telegram",
			Status:  "FAIL",
			Message: "No bot token configured",
			Detail:  "Set telegram.token or TELEGRAM_BOT_TOKEN (get one from @BotFather)",
		}
	}
	if !telegramTokenShape.MatchString(token) {
		return CheckResult{Name: "Telegram", Status: "WARN", Message: "Token does not look like a Bot API token"}
	}
	return CheckResult{Name: "Telegram", Status: "PASS", Message: "Bot token present"}
}

func checkDatabase(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Database", Status: "SKIP", Message: "Config missing"}
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Open failed: %v", err)}
	}
	defer st.Close()

	messages, err := st.CountMessages(ctx)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Query failed: %v", err)}
	}
	memories, err := st.CountMemories(ctx)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Query failed: %v", err)}
	}

	return CheckResult{
		Name:    "Database",
		Status:  "PASS",
		Message: "Connection and schema valid",
		Detail:  fmt.Sprintf("messages=%d, memories=%d", messages, memories),
	}
}

func checkBraveKey(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Web Search", Status: "SKIP", Message: "Config missing"}
	}
	if cfg.APIKey("brave_search") == "" {
		return CheckResult{
			Name:    "Web Search",
			Status:  "WARN",
			Message: "No Brave Search API key; search tools will report it to the model",
			Detail:  "Set api_keys.brave_search or BRAVE_SEARCH_API_KEY",
		}
	}
	return CheckResult{Name: "Web Search", Status: "PASS", Message: "Brave Search key configured"}
}

func checkNetwork(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Network", Status: "SKIP", Message: "Config missing"}
	}

	host := "api.telegram.org"
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case config.ProviderAnthropic:
		host = "api.anthropic.com"
	case config.ProviderOpenAI:
		host = "api.openai.com"
	case config.ProviderGoogle:
		host = "generativelanguage.googleapis.com"
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	addrs, err := net.DefaultResolver.LookupHost(lookupCtx, host)
	latency := time.Since(start)

	if err != nil {
		return CheckResult{
			Name:    "Network",
			Status:  "FAIL",
			Message: fmt.Sprintf("DNS lookup failed for %s: %v", host, err),
			Detail:  fmt.Sprintf("latency=%dms", latency.Milliseconds()),
		}
	}

	return CheckResult{
		Name:    "Network",
		Status:  "PASS",
		Message: fmt.Sprintf("DNS resolved %s (%d addresses, %dms)", host, len(addrs), latency.Milliseconds()),
	}
}
