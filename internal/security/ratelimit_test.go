package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cfg RateLimitConfig) *ClientRateLimiter {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewClientRateLimiter(cfg, logger)
}

func TestClientRateLimiter_DisabledAllowsEverything(t *testing.T) {
	rl := newTestLimiter(RateLimitConfig{Enabled: false, RequestsPerMinute: 1, BurstSize: 1})
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("anyone"))
	}
}

func TestClientRateLimiter_BurstThenReject(t *testing.T) {
	rl := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 60, BurstSize: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "burst request %d should pass", i+1)
	}
	assert.False(t, rl.Allow("client-a"), "request past the burst must be rejected")

	// A different client has its own bucket.
	assert.True(t, rl.Allow("client-b"))
}

func TestClientRateLimiter_RefillsOverTime(t *testing.T) {
	// 60000/min = 1 token per millisecond.
	rl := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 60000, BurstSize: 1})
	defer rl.Stop()

	assert.True(t, rl.Allow("c"))
	assert.False(t, rl.Allow("c"))

	time.Sleep(5 * time.Millisecond)
	assert.True(t, rl.Allow("c"))
}

func TestClientRateLimiter_SweepRemovesIdleClients(t *testing.T) {
	rl := newTestLimiter(RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Hour,
		IdleTTL:           time.Nanosecond,
	})
	defer rl.Stop()

	rl.Allow("stale")
	time.Sleep(time.Millisecond)
	rl.sweep()

	rl.mu.Lock()
	_, present := rl.clients["stale"]
	rl.mu.Unlock()
	assert.False(t, present, "idle client bucket should be swept")
}

func TestClientRateLimiter_Middleware(t *testing.T) {
	rl := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/route", nil)
	req.RemoteAddr = "10.1.2.3:4000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_error")
}
