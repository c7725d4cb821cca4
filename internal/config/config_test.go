package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.MaxCalls)
	assert.Equal(t, 100_000, cfg.MaxTotalTokens)
	assert.True(t, cfg.PreserveConversation)
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	body := "backend: routing\nstrong_model: deepseek/deepseek-reasoner\nmax_calls: 25\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".descent.yaml"), []byte(body), 0o644))

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, BackendRouting, cfg.Backend)
	assert.Equal(t, "deepseek/deepseek-reasoner", cfg.StrongModel)
	assert.Equal(t, 25, cfg.MaxCalls)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100_000, cfg.MaxTotalTokens)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".descent.yaml"), []byte("max_calls: 25\n"), 0o644))
	t.Setenv("DESCENT_MAX_CALLS", "7")
	t.Setenv("DESCENT_MODEL", "gpt-4o-mini")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxCalls)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestAPIKeysComeFromEnvOnly(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-direct")
	t.Setenv("OPENROUTER_API_KEY", "sk-routing")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk-direct", cfg.DirectAPIKey)
	assert.Equal(t, "sk-routing", cfg.RoutingAPIKey)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".descent.yaml"), []byte("backend: carrier-pigeon\n"), 0o644))

	_, err := Load("", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestResolveBackend(t *testing.T) {
	cfg := Config{Backend: BackendDirect, RoutingAPIKey: "k"}
	assert.Equal(t, BackendDirect, cfg.ResolveBackend())

	cfg = Config{RoutingAPIKey: "k"}
	assert.Equal(t, BackendRouting, cfg.ResolveBackend())

	cfg = Config{}
	assert.Equal(t, BackendDirect, cfg.ResolveBackend())
}
