package telemetry

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		leaks bool
	}{
		{"anthropic key", "key is sk-ant-REDACTED", true},
		{"openai key", "sk-abcdefghijklmnopqrstuvwxyz012345", true},
		{"google key", "AIzaSyA1234567890abcdefghijklmnopqrstu", true},
		{"telegram token", "123456789:AAH9abcdefghijklmnopqrstuvwxyz01234", true},
		{"bearer header", "Authorization: Bearer abc123def456", true},
		{"plain text", "the weather in Belgrade is sunny", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Redact(tt.in)
			if tt.leaks && out == tt.in {
				t.Fatalf("expected redaction for %q, got unchanged output", tt.in)
			}
			if !tt.leaks && out != tt.in {
				t.Fatalf("expected %q to pass through, got %q", tt.in, out)
			}
			if tt.leaks && !strings.Contains(out, "[REDACTED]") {
				t.Fatalf("expected [REDACTED] marker in %q", out)
			}
		})
	}
}

func TestShouldRedactKey(t *testing.T) {
	for key, want := range map[string]bool{
		"api_key":       true,
		"bot_token":     true,
		"Authorization": true,
		"message":       false,
		"task_id":       false,
	} {
		if got := shouldRedactKey(key); got != want {
			t.Errorf("shouldRedactKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := NewLogger(dir, "debug", true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer closer.Close()
	logger.Info("hello", "k", "v")
}
