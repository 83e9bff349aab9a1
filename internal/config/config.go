package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
	"github.com/tributary-ai/llm-cost-router/internal/observe"
	"github.com/tributary-ai/llm-cost-router/internal/providers/anthropic"
	"github.com/tributary-ai/llm-cost-router/internal/providers/local"
	"github.com/tributary-ai/llm-cost-router/internal/providers/openai"
	"github.com/tributary-ai/llm-cost-router/internal/routing"
	"github.com/tributary-ai/llm-cost-router/internal/server"
)

// Config is the complete application configuration.
type Config struct {
	Server        server.Config             `yaml:"server"`
	Routing       RoutingConfig             `yaml:"routing"`
	Health        HealthConfig              `yaml:"health"`
	Catalog       []catalog.ProviderProfile `yaml:"catalog"`
	Providers     ProvidersConfig           `yaml:"providers"`
	Logging       LoggingConfig             `yaml:"logging"`
	Observability observe.RecorderConfig    `yaml:"observability"`
}

// RoutingConfig tunes the selector and executor.
type RoutingConfig struct {
	Weights  routing.Weights        `yaml:"weights"`
	Executor routing.ExecutorConfig `yaml:"executor"`
}

// HealthConfig tunes the circuit breaker and the background prober.
type HealthConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	ProbeEnabled     bool          `yaml:"probe_enabled"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
}

// ProvidersConfig holds backend credentials and endpoints. A nil section
// means the backend is not configured and will not be registered.
type ProvidersConfig struct {
	OpenAI    *openai.OpenAIConfig       `yaml:"openai"`
	Anthropic *anthropic.AnthropicConfig `yaml:"anthropic"`
	Local     *local.LocalConfig         `yaml:"local"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// LoadConfig builds the configuration from defaults, an optional YAML
// file, and environment overrides, then validates the result.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) setDefaults() {
	c.Server = server.Config{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	c.Routing = RoutingConfig{
		Weights:  routing.DefaultWeights(),
		Executor: routing.DefaultExecutorConfig(),
	}

	c.Health = HealthConfig{
		FailureThreshold: 3,
		Cooldown:         300 * time.Second,
		ProbeEnabled:     true,
		ProbeInterval:    30 * time.Second,
		ProbeTimeout:     10 * time.Second,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Observability = observe.RecorderConfig{
		Enabled:    true,
		BufferSize: 256,
	}

	c.Catalog = []catalog.ProviderProfile{
		{
			Name:             "ollama",
			CostTier:         catalog.TierFree,
			QualityScore:     0.60,
			SpeedScore:       0.50,
			MaxContextTokens: 8192,
			Enabled:          true,
			Models: []catalog.ModelSpec{
				{Name: "llama3.1:8b", Tier: catalog.ModelTierFast},
			},
		},
		{
			Name:               "openai",
			CostTier:           catalog.TierMedium,
			InputCostPer1K:     0.0025,
			OutputCostPer1K:    0.01,
			DailyBudgetLimit:   25.0,
			RateLimitPerMinute: 500,
			QualityScore:       0.92,
			SpeedScore:         0.75,
			MaxContextTokens:   128000,
			RequiresCredential: true,
			Enabled:            true,
			Models: []catalog.ModelSpec{
				{Name: "gpt-4o", Tier: catalog.ModelTierPowerful},
				{Name: "gpt-4o-mini", Tier: catalog.ModelTierFast},
			},
		},
		{
			Name:               "anthropic",
			CostTier:           catalog.TierHigh,
			InputCostPer1K:     0.003,
			OutputCostPer1K:    0.015,
			DailyBudgetLimit:   25.0,
			RateLimitPerMinute: 400,
			QualityScore:       0.95,
			SpeedScore:         0.70,
			MaxContextTokens:   200000,
			RequiresCredential: true,
			Enabled:            true,
			Models: []catalog.ModelSpec{
				{Name: "claude-3-5-sonnet-20241022", Tier: catalog.ModelTierPowerful},
				{Name: "claude-3-haiku-20240307", Tier: catalog.ModelTierFast},
			},
		},
	}

	c.Providers = ProvidersConfig{
		Local: &local.LocalConfig{
			Name:    "ollama",
			BaseURL: "http://localhost:11434",
			Timeout: 120 * time.Second,
		},
		OpenAI:    &openai.OpenAIConfig{Timeout: 120 * time.Second},
		Anthropic: &anthropic.AnthropicConfig{Timeout: 120 * time.Second},
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	if port := os.Getenv("LLM_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Providers.OpenAI == nil {
			c.Providers.OpenAI = &openai.OpenAIConfig{}
		}
		c.Providers.OpenAI.APIKey = key
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c.Providers.Anthropic == nil {
			c.Providers.Anthropic = &anthropic.AnthropicConfig{}
		}
		c.Providers.Anthropic.APIKey = key
	}

	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		if c.Providers.Local == nil {
			c.Providers.Local = &local.LocalConfig{}
		}
		c.Providers.Local.BaseURL = url
	}

	if level := os.Getenv("LLM_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("LLM_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.Catalog) == 0 {
		return fmt.Errorf("catalog must declare at least one provider")
	}

	w := c.Routing.Weights
	if w.Quality < 0 || w.Speed < 0 || w.Cost < 0 || w.Context < 0 {
		return fmt.Errorf("routing weights cannot be negative")
	}

	if c.Health.FailureThreshold < 0 {
		return fmt.Errorf("health failure threshold cannot be negative")
	}

	return nil
}
