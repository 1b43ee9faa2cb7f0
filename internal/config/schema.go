package config

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// configSchema is the JSON schema config.yaml must satisfy. Validation
// runs on the raw document so typos (wrong types, unknown providers)
// fail loudly at startup instead of silently defaulting.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "log_level": {"type": "string", "enum": ["debug", "info", "warn", "warning", "error"]},
    "llm": {
      "type": "object",
      "properties": {
        "provider": {"type": "string", "enum": ["anthropic", "openai", "google", "custom"]},
        "model": {"type": "string"},
        "sliding_window": {"type": "integer", "minimum": -1},
        "cache_prompts": {"type": "boolean"},
        "providers": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "properties": {
              "api_key": {"type": "string"},
              "base_url": {"type": "string"},
              "model": {"type": "string"}
            }
          }
        }
      }
    },
    "telegram": {
      "type": "object",
      "properties": {"token": {"type": "string"}}
    },
    "scheduler": {
      "type": "object",
      "properties": {
        "tick_seconds": {"type": "integer", "minimum": 1},
        "task_timeout_minutes": {"type": "integer", "minimum": 1},
        "workers": {"type": "integer", "minimum": 1}
      }
    },
    "otel": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "exporter": {"type": "string", "enum": ["otlp-http", "stdout", "none"]},
        "endpoint": {"type": "string"},
        "service_name": {"type": "string"},
        "sample_rate": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "api_keys": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchema))
	if err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", doc); err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	sch, err := compiler.Compile("config.schema.json")
	if err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	return sch
}

// ValidateDocument checks a raw config.yaml document against the schema.
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
