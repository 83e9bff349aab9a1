package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(cfg AuthConfig) *Authenticator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAuthenticator(cfg, logger)
}

func TestAuthenticator_APIKeys(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{
		APIKeys:   []string{"router-key-1", "router-key-2"},
		JWTSecret: "test-secret",
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "first key", token: "router-key-1"},
		{name: "second key", token: "router-key-2"},
		{name: "unknown key", token: "not-a-key", wantErr: true},
		{name: "empty token", token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := auth.Authenticate(ctx, tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "api_key", id.AuthType)
			assert.NotEmpty(t, id.Subject)
		})
	}
}

func TestAuthenticator_JWTRoundTrip(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})

	token, err := auth.IssueJWT("analytics-batch", map[string]string{"team": "data"})
	require.NoError(t, err)

	claims, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "analytics-batch", claims.Subject)
	assert.Equal(t, "data", claims.Metadata["team"])

	id, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "jwt", id.AuthType)
	assert.Equal(t, "analytics-batch", id.Subject)
}

func TestAuthenticator_RejectsWrongSecret(t *testing.T) {
	issuer := newTestAuthenticator(AuthConfig{JWTSecret: "secret-a"})
	verifier := newTestAuthenticator(AuthConfig{JWTSecret: "secret-b"})

	token, err := issuer.IssueJWT("subject", nil)
	require.NoError(t, err)

	_, err = verifier.ValidateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticator_RejectsExpiredJWT(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{
		JWTSecret: "test-secret",
		JWTExpiry: -time.Minute,
	})
	// NewAuthenticator normalizes non-positive expiry to a day, so build
	// one directly with the negative value.
	auth.cfg.JWTExpiry = -time.Minute

	token, err := auth.IssueJWT("subject", nil)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticator_Middleware(t *testing.T) {
	auth := newTestAuthenticator(AuthConfig{
		RequireAuth: true,
		APIKeys:     []string{"router-key"},
		JWTSecret:   "test-secret",
	})

	var sawIdentity *Identity
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("bearer token accepted", func(t *testing.T) {
		sawIdentity = nil
		req := httptest.NewRequest(http.MethodPost, "/v1/route", nil)
		req.Header.Set("Authorization", "Bearer router-key")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, sawIdentity)
		assert.Equal(t, "api_key", sawIdentity.AuthType)
	})

	t.Run("x-api-key header accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/route", nil)
		req.Header.Set("X-API-Key", "router-key")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/route", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "authentication_error")
	})

	t.Run("health endpoint bypasses auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	assert.Equal(t, "198.51.100.2", ClientIP(req))
}
