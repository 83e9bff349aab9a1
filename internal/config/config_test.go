package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, 300*time.Second, cfg.Health.Cooldown)
	assert.Equal(t, 3, cfg.Routing.Executor.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Routing.Executor.BaseTimeout)
	assert.Equal(t, 15*time.Second, cfg.Routing.Executor.FreeTierBaseTimeout)
	assert.InDelta(t, 0.4, cfg.Routing.Weights.Quality, 1e-9)

	require.Len(t, cfg.Catalog, 3)
	assert.Equal(t, catalog.TierFree, cfg.Catalog[0].CostTier)
	assert.False(t, cfg.Catalog[0].RequiresCredential)
	assert.True(t, cfg.Catalog[1].RequiresCredential)
}

func TestLoadConfig_FromFile(t *testing.T) {
	content := `
server:
  port: "9090"
logging:
  level: debug
  format: text
routing:
  weights:
    quality: 0.5
    speed: 0.2
    cost: 0.2
    context_adequacy: 0.1
health:
  failure_threshold: 5
catalog:
  - name: only
    cost_tier: free
    quality_score: 0.5
    speed_score: 0.5
    max_context_tokens: 4096
    enabled: true
    models:
      - name: only-model
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Health.FailureThreshold)
	assert.InDelta(t, 0.5, cfg.Routing.Weights.Quality, 1e-9)

	require.Len(t, cfg.Catalog, 1)
	assert.Equal(t, "only", cfg.Catalog[0].Name)
	assert.Equal(t, "only-model", cfg.Catalog[0].Models[0].Name)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_ROUTER_PORT", "7070")
	t.Setenv("LLM_ROUTER_LOG_LEVEL", "warn")
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test-456")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "sk-test-123", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "ak-test-456", cfg.Providers.Anthropic.APIKey)
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	t.Setenv("LLM_ROUTER_LOG_LEVEL", "verbose")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("definitely/not/here.yaml")
	assert.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_NegativeWeightRejected(t *testing.T) {
	content := `
routing:
  weights:
    quality: -0.1
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
