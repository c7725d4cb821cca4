// Package config resolves the effective settings of a descent run from
// defaults, an optional YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend selects which provider client the app builds.
type Backend string

const (
	// BackendAuto picks routing when an OpenRouter key is present and
	// falls back to direct otherwise.
	BackendAuto Backend = ""

	BackendDirect  Backend = "direct"
	BackendRouting Backend = "routing"
)

// Config is the effective run configuration. API keys come from the
// environment only and are never written to or read from the YAML file.
type Config struct {
	Backend Backend `yaml:"backend"`

	// Model is the light-phase model, StrongModel the heavy-phase one.
	// Empty values fall back to the backend's defaults.
	Model       string `yaml:"model"`
	StrongModel string `yaml:"strong_model"`

	MaxCalls          int `yaml:"max_calls"`
	MaxTotalTokens    int `yaml:"max_total_tokens"`
	MaxResponseTokens int `yaml:"max_response_tokens"`

	// PreserveConversation keeps each solved task and its answer in the
	// standing conversation.
	PreserveConversation bool `yaml:"preserve_conversation"`

	// PromptsFile points at a YAML file overriding the built-in prompts.
	PromptsFile string `yaml:"prompts_file"`

	// TracePath enables the JSONL run trace when non-empty.
	TracePath string `yaml:"trace_path"`

	// Referer and Title identify the app to the routing backend.
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`

	Debug bool `yaml:"debug"`

	DirectAPIKey  string `yaml:"-"`
	RoutingAPIKey string `yaml:"-"`
	Organization  string `yaml:"-"`
}

// Default returns the baseline configuration before file and environment
// merging.
func Default() Config {
	return Config{
		MaxCalls:             60,
		MaxTotalTokens:       100_000,
		PreserveConversation: true,
		Title:                "descent",
	}
}

// candidates lists the config file locations probed when no explicit path is
// given, nearest first.
func candidates(cwd string) []string {
	paths := []string{
		filepath.Join(cwd, ".descent.yaml"),
		filepath.Join(cwd, ".descent.yml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".descent", "config.yaml"))
	}
	return paths
}

// Load builds the effective configuration. An empty path probes the standard
// locations; a missing file there is not an error, a missing explicit file
// is.
func Load(path, cwd string) (Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates(cwd) {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	} else if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DirectAPIKey = os.Getenv("OPENAI_API_KEY")
	c.RoutingAPIKey = os.Getenv("OPENROUTER_API_KEY")
	c.Organization = os.Getenv("OPENAI_ORGANIZATION")

	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	if v := os.Getenv("DESCENT_BACKEND"); v != "" {
		c.Backend = Backend(v)
	}
	setString(&c.Model, "DESCENT_MODEL")
	setString(&c.StrongModel, "DESCENT_STRONG_MODEL")
	setInt(&c.MaxCalls, "DESCENT_MAX_CALLS")
	setInt(&c.MaxTotalTokens, "DESCENT_MAX_TOTAL_TOKENS")
	setString(&c.PromptsFile, "DESCENT_PROMPTS_FILE")
	setString(&c.TracePath, "DESCENT_TRACE_PATH")
	if v := os.Getenv("DESCENT_DEBUG"); v == "true" || v == "1" {
		c.Debug = true
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendAuto, BackendDirect, BackendRouting:
	default:
		return fmt.Errorf("config: unknown backend %q (want direct or routing)", c.Backend)
	}
	return nil
}

// ResolveBackend returns the concrete backend: the configured one, or
// routing when an OpenRouter key is present, or direct.
func (c *Config) ResolveBackend() Backend {
	if c.Backend != BackendAuto {
		return c.Backend
	}
	if c.RoutingAPIKey != "" {
		return BackendRouting
	}
	return BackendDirect
}
