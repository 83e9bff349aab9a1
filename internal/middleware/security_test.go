package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-cost-router/internal/security"
)

func newTestStack(t *testing.T, cfg SecurityConfig) *SecurityStack {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	stack, err := NewSecurityStack(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(stack.Stop)
	return stack
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityStack_HeadersAlwaysSet(t *testing.T) {
	stack := newTestStack(t, SecurityConfig{})
	handler := stack.Handler()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestSecurityStack_AuthBeforeRateLimit(t *testing.T) {
	stack := newTestStack(t, SecurityConfig{
		Auth: security.AuthConfig{
			RequireAuth: true,
			APIKeys:     []string{"stack-key"},
		},
		RateLimit: security.RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			BurstSize:         2,
		},
	})
	handler := stack.Handler()(okHandler())

	// Unauthenticated requests never reach the limiter.
	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated requests consume the per-subject bucket.
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
		req.Header.Set("X-API-Key", "stack-key")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	req.Header.Set("X-API-Key", "stack-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSecurityStack_EnvelopeRejected(t *testing.T) {
	stack := newTestStack(t, SecurityConfig{
		Request: security.ValidationConfig{MaxRequestSize: 10},
	})
	handler := stack.Handler()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/route", strings.NewReader(strings.Repeat("x", 50)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestSchemaValidator_DisabledPassesThrough(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	sv, err := NewSchemaValidator(SchemaValidationConfig{Enabled: false}, logger)
	require.NoError(t, err)

	handler := sv.Middleware(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/anything", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSchemaValidator_MissingSpecFails(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	_, err := NewSchemaValidator(SchemaValidationConfig{Enabled: true, SpecPath: "no/such/file.yaml"}, logger)
	assert.Error(t, err)
}
