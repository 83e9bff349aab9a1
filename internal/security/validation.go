package security

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// ValidationConfig bounds what the gateway accepts before routing.
type ValidationConfig struct {
	MaxRequestSize  int64    `yaml:"max_request_size"`
	MaxPromptChars  int      `yaml:"max_prompt_chars"`
	MaxTokensCap    int      `yaml:"max_tokens_cap"`
	ContentTypes    []string `yaml:"allowed_content_types"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

// ValidationResult reports why a request was rejected.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// RequestValidator sanity-checks inbound routing requests.
type RequestValidator struct {
	cfg     ValidationConfig
	logger  *logrus.Logger
	blocked []*regexp.Regexp
}

func NewRequestValidator(cfg ValidationConfig, logger *logrus.Logger) (*RequestValidator, error) {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = 1 << 20
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 100000
	}
	if cfg.MaxTokensCap <= 0 {
		cfg.MaxTokensCap = 8192
	}
	if len(cfg.ContentTypes) == 0 {
		cfg.ContentTypes = []string{"application/json"}
	}

	v := &RequestValidator{cfg: cfg, logger: logger}
	for _, pattern := range cfg.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", pattern, err)
		}
		v.blocked = append(v.blocked, re)
	}
	return v, nil
}

// ValidateHTTP checks the transport envelope before the body is decoded.
func (v *RequestValidator) ValidateHTTP(r *http.Request) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if r.ContentLength > v.cfg.MaxRequestSize {
		result.fail(fmt.Sprintf("request size %d exceeds maximum %d", r.ContentLength, v.cfg.MaxRequestSize))
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		contentType := r.Header.Get("Content-Type")
		if !v.allowedContentType(contentType) {
			result.fail(fmt.Sprintf("content type %q not allowed", contentType))
		}
	}

	return result
}

// ValidateRoutingRequest checks the decoded payload.
func (v *RequestValidator) ValidateRoutingRequest(req *types.RoutingRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(req.Prompt) == "" {
		result.fail("prompt cannot be empty")
	}
	if !utf8.ValidString(req.Prompt) {
		result.fail("prompt must be valid UTF-8")
	}
	if len(req.Prompt) > v.cfg.MaxPromptChars {
		result.fail(fmt.Sprintf("prompt length %d exceeds maximum %d", len(req.Prompt), v.cfg.MaxPromptChars))
	}
	if req.MaxTokens < 0 || req.MaxTokens > v.cfg.MaxTokensCap {
		result.fail(fmt.Sprintf("max_tokens must be in [0,%d]", v.cfg.MaxTokensCap))
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		result.fail("temperature must be in [0,2]")
	}
	if req.TaskComplexity < 0 || req.TaskComplexity > 1 {
		result.fail("task_complexity must be in [0,1]")
	}
	if req.ContextTokens < 0 {
		result.fail("context_tokens cannot be negative")
	}
	if req.MaxCostPerQuery < 0 {
		result.fail("max_cost_per_query cannot be negative")
	}
	if req.LatencyBudgetMs < 0 {
		result.fail("latency_budget_ms cannot be negative")
	}

	for _, re := range v.blocked {
		if re.MatchString(req.Prompt) {
			v.logger.WithField("pattern", re.String()).Warn("Prompt matched blocked pattern")
			result.fail("prompt matched a blocked pattern")
			break
		}
	}

	return result
}

func (v *RequestValidator) allowedContentType(contentType string) bool {
	for _, allowed := range v.cfg.ContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func (r *ValidationResult) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}
