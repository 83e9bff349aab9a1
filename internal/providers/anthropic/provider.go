package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/providers"
)

// AnthropicProvider implements the Provider capability for Anthropic Claude.
type AnthropicProvider struct {
	client *anthropic.Client
	config *AnthropicConfig
	logger *logrus.Logger
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	ProbeModel string        `yaml:"probe_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider(config *AnthropicConfig, logger *logrus.Logger) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		config: config,
		logger: logger,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete performs a single-turn message request.
func (p *AnthropicProvider) Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float32) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	req := anthropic.MessageNewParams{
		Model: anthropic.Model(model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(temperature)),
	}

	resp, err := p.client.Messages.New(ctx, req)
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("Anthropic API call failed")
		return "", fmt.Errorf("anthropic api call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}

	return sb.String(), nil
}

// HealthProbe performs a minimal one-token message against the cheapest
// configured model.
func (p *AnthropicProvider) HealthProbe(ctx context.Context) error {
	model := p.config.ProbeModel
	if model == "" {
		model = "claude-3-haiku-20240307"
	}

	req := anthropic.MessageNewParams{
		Model: anthropic.Model(model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
		MaxTokens: 1,
	}

	_, err := p.client.Messages.New(ctx, req)
	if err != nil {
		p.logger.WithError(err).Error("Anthropic health probe failed")
		return fmt.Errorf("anthropic health probe failed: %w", err)
	}

	p.logger.Debug("Anthropic health probe passed")
	return nil
}

var _ providers.Provider = (*AnthropicProvider)(nil)
