package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/providers"
)

// LocalProvider implements the Provider capability against an Ollama-style
// local model runner. It is the FREE-tier backend: no monetary cost, but it
// trades network latency for compute latency.
type LocalProvider struct {
	httpClient *http.Client
	config     *LocalConfig
	logger     *logrus.Logger
}

// LocalConfig holds local runner configuration.
type LocalConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`

	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewLocalProvider creates a provider over the local runner endpoint.
func NewLocalProvider(config *LocalConfig, logger *logrus.Logger) *LocalProvider {
	if config.Name == "" {
		config.Name = "ollama"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	return &LocalProvider{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger,
	}
}

// Name returns the configured provider name.
func (p *LocalProvider) Name() string {
	return p.config.Name
}

// Complete posts a non-streaming generate request to the local runner.
func (p *LocalProvider) Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float32) (string, error) {
	reqBody := generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.WithError(err).WithField("model", model).Error("Local runner call failed")
		return "", fmt.Errorf("local runner call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local runner returned status %d", resp.StatusCode)
	}

	var generated generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	return generated.Response, nil
}

// HealthProbe checks the runner's model listing endpoint.
func (p *LocalProvider) HealthProbe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.WithError(err).Error("Local runner health probe failed")
		return fmt.Errorf("local runner health probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local runner probe returned status %d", resp.StatusCode)
	}

	p.logger.Debug("Local runner health probe passed")
	return nil
}

var _ providers.Provider = (*LocalProvider)(nil)
