package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/providers"
)

// OpenAIProvider implements the Provider capability for the OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	config *OpenAIConfig
	logger *logrus.Logger
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	OrgID   string        `yaml:"org_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(config *OpenAIConfig, logger *logrus.Logger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete performs a single-turn chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("OpenAI API call failed")
		return "", fmt.Errorf("openai api call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// HealthProbe verifies reachability via the models endpoint.
func (p *OpenAIProvider) HealthProbe(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		p.logger.WithError(err).Error("OpenAI health probe failed")
		return fmt.Errorf("openai health probe failed: %w", err)
	}

	p.logger.Debug("OpenAI health probe passed")
	return nil
}

var _ providers.Provider = (*OpenAIProvider)(nil)
