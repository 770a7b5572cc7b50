package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file the CLI reads when no --config flag is
// given.
const DefaultPath = ".nai.yaml"

const envPrefix = "NAI_"

// Load builds Settings from defaults, then the YAML file at path (skipped if
// absent), then NAI_* environment variables. A missing file is not an error;
// an unreadable or malformed one is.
func Load(path string) (*Settings, error) {
	cfg := Default()

	k := koanf.New(".")

	if path == "" {
		path = DefaultPath
	}
	if content, err := os.ReadFile(path); err == nil {
		if err := k.Load(rawbytes.Provider(content), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	// NAI_PIPELINE_CHUNK_SIZE -> pipeline.chunk_size,
	// NAI_PIPELINE_TELEMETRY_ENABLED -> pipeline.telemetry.enabled.
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Saved config files carry empty api_key fields; the environment is the
	// source of truth for credentials.
	if key := Secret(os.Getenv("OPENAI_API_KEY")); key.IsSet() {
		if !cfg.Embeddings.APIKey.IsSet() {
			cfg.Embeddings.APIKey = key
		}
		if !cfg.Generator.APIKey.IsSet() {
			cfg.Generator.APIKey = key
		}
		if !cfg.Eval.APIKey.IsSet() {
			cfg.Eval.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envTransform maps NAI_* variable names onto config paths. The first
// underscore separates section from key; telemetry is the only nested
// subtree and gets its own separator.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	s = strings.Replace(s, "_", ".", 1)
	return strings.Replace(s, "telemetry_", "telemetry.", 1)
}

// ApplyOverrides applies dot-path CLI overrides ("generator.model=gpt-4o")
// on top of cfg and re-validates. Scalar values are coerced from their
// string form.
func ApplyOverrides(cfg *Settings, overrides map[string]string) error {
	if len(overrides) == 0 {
		return nil
	}
	k := koanf.New(".")
	for path, value := range overrides {
		if err := k.Set(path, parseScalar(value)); err != nil {
			return fmt.Errorf("set override %s: %w", path, err)
		}
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config after overrides: %w", err)
	}
	return nil
}

// parseScalar coerces a CLI string into the value type the settings tree
// expects: bool, int, float, or string.
func parseScalar(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Save writes cfg as YAML to path, creating parent directories. API keys are
// never written; they are sourced from the environment on load.
func (s *Settings) Save(path string) error {
	scrubbed := *s
	scrubbed.Embeddings.APIKey = ""
	scrubbed.Generator.APIKey = ""
	scrubbed.Eval.APIKey = ""

	m, err := scrubbed.toMap()
	if err != nil {
		return err
	}
	out, err := kyaml.Parser().Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Get resolves a dot-path ("pipeline.chunk_size") against the settings tree.
// Secrets come back redacted.
func (s *Settings) Get(path string) (any, error) {
	m, err := s.toMap()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return m, nil
	}
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("no such config key: %s", path)
		}
		cur, ok = node[part]
		if !ok {
			return nil, fmt.Errorf("no such config key: %s", path)
		}
	}
	return cur, nil
}

// toMap round-trips the settings through JSON, which applies Secret
// redaction along the way.
func (s *Settings) toMap() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}
