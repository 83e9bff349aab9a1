package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
	"github.com/tributary-ai/llm-cost-router/internal/health"
	"github.com/tributary-ai/llm-cost-router/internal/ledger"
	"github.com/tributary-ai/llm-cost-router/internal/observe"
	"github.com/tributary-ai/llm-cost-router/internal/providers"
	"github.com/tributary-ai/llm-cost-router/internal/routing"
	"github.com/tributary-ai/llm-cost-router/internal/types"
)

type echoProvider struct {
	name string
	err  error
}

func (p *echoProvider) Name() string { return p.name }

func (p *echoProvider) Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float32) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "echo: " + prompt, nil
}

func (p *echoProvider) HealthProbe(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T) (*Server, *health.Tracker) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	profiles := []catalog.ProviderProfile{
		{
			Name:             "echo",
			CostTier:         catalog.TierFree,
			QualityScore:     0.7,
			SpeedScore:       0.9,
			MaxContextTokens: 8192,
			Enabled:          true,
			Models:           []catalog.ModelSpec{{Name: "echo-1"}},
		},
	}

	cat, err := catalog.NewCatalog(profiles, logger)
	require.NoError(t, err)

	registry := providers.NewRegistry(logger)
	require.NoError(t, registry.Register(&echoProvider{name: "echo"}))

	tracker := health.NewTracker(health.DefaultConfig(), logger)
	costs := ledger.NewLedger(cat, logger)
	recorder := observe.NewRecorder(observe.RecorderConfig{}, logger)

	selector := routing.NewSelector(cat, registry, tracker, costs, routing.DefaultWeights(), logger)
	executor := routing.NewExecutor(registry, tracker, costs, recorder, routing.DefaultExecutorConfig(), logger)
	orchestrator := routing.NewOrchestrator(selector, executor, recorder, logger)

	srv, err := NewServer(orchestrator, cat, tracker, costs, recorder, Config{Port: "0"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Stop(context.Background()) })

	return srv, tracker
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Route(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/v1/route", map[string]interface{}{
		"prompt": "hello router",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.LLMResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "echo", resp.Provider)
	assert.Equal(t, "echo: hello router", resp.Content)
	assert.NotEmpty(t, resp.TraceID)
}

func TestServer_RouteValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/v1/route", map[string]interface{}{
		"prompt":      "",
		"temperature": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")
}

func TestServer_RouteBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/v1/route", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON")
}

func TestServer_RoutingDecision(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	rec := postJSON(t, handler, "/v1/routing/decision", map[string]interface{}{
		"prompt": "plan only",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var decision routing.RoutingDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	require.Len(t, decision.Candidates, 1)
	assert.Equal(t, "echo", decision.Candidates[0].Provider.Name)
	assert.NotEmpty(t, decision.Reasoning)
}

func TestServer_ListProviders(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"echo"`)
}

func TestServer_ProviderDetailNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/providers/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HealthReflectsBreakers(t *testing.T) {
	srv, tracker := newTestServer(t)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	for i := 0; i < 3; i++ {
		tracker.RecordFailure("echo", types.ErrorKindTimeout)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestServer_CostsAndEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	postJSON(t, handler, "/v1/route", map[string]interface{}{"prompt": "count me"})

	req := httptest.NewRequest(http.MethodGet, "/v1/costs/echo", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_queries":1`)

	req = httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_attempts":1`)
	assert.Contains(t, rec.Body.String(), `"total_routes":1`)
}

func TestServer_FallbackWhenProviderDown(t *testing.T) {
	srv, tracker := newTestServer(t)
	handler := srv.Routes()

	for i := 0; i < 3; i++ {
		tracker.RecordFailure("echo", types.ErrorKindProviderError)
	}

	start := time.Now()
	rec := postJSON(t, handler, "/v1/route", map[string]interface{}{"prompt": "anyone home"})
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.LLMResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Fallback)
	assert.Equal(t, routing.FallbackProviderName, resp.Provider)
	assert.Less(t, elapsed, time.Second)
}
