package brain

import "fmt"

// ConfigurationError indicates a problem that is detectable before any
// network call: unknown provider, missing API key, no resolvable model.
// Callers should surface these to the user rather than retrying.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "llm configuration: " + e.Reason
}

// ProviderError wraps a failure returned by the LLM provider itself.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
