// Package telemetry provides structured logging for Golabot.
// Logs are JSON lines written to both stdout and a file under the home
// directory; values that look like credentials are redacted before they
// reach any sink.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// secretPatterns match common credential shapes in log values.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),           // Anthropic keys
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),               // OpenAI-style keys
	regexp.MustCompile(`AIza[A-Za-z0-9_-]{30,}`),              // Google API keys
	regexp.MustCompile(`\b\d{6,10}:[A-Za-z0-9_-]{30,}\b`),     // Telegram bot tokens
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{8,}`), // Authorization headers
}

// NewLogger builds the process-wide slog logger. Output goes to
// <homeDir>/logs/golabot.jsonl and, unless quiet is set, also to stdout.
func NewLogger(homeDir, level string, quiet bool) (*slog.Logger, io.Closer, error) {
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(filepath.Join(logDir, "golabot.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer
	if quiet {
		w = file
	} else {
		w = io.MultiWriter(os.Stdout, file)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			if shouldRedactKey(a.Key) {
				return slog.String(a.Key, "[REDACTED]")
			}
			if a.Value.Kind() == slog.KindString {
				if redacted := Redact(a.Value.String()); redacted != a.Value.String() {
					return slog.String(a.Key, redacted)
				}
			}
			return a
		},
	})
	logger := slog.New(handler).With("component", "golabot")
	return logger, file, nil
}

func shouldRedactKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	for _, token := range []string{"token", "secret", "password", "authorization", "api_key", "apikey", "bearer"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// Redact replaces credential-shaped substrings with a placeholder.
// Exposed so tool output can be scrubbed before it is persisted.
func Redact(v string) string {
	for _, re := range secretPatterns {
		v = re.ReplaceAllString(v, "[REDACTED]")
	}
	return v
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
