package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	clientIPContextKey contextKey = "client_ip"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Subject   string            `json:"subject"`
	AuthType  string            `json:"auth_type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// RouterClaims are the JWT claims issued and accepted by the gateway.
type RouterClaims struct {
	Subject  string            `json:"sub_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	RequireAuth bool          `yaml:"require_auth"`
	APIKeys     []string      `yaml:"api_keys"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`
}

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid authentication token")
)

// Authenticator validates API keys and HS256 JWTs for the HTTP gateway.
type Authenticator struct {
	cfg    AuthConfig
	logger *logrus.Logger
}

func NewAuthenticator(cfg AuthConfig, logger *logrus.Logger) *Authenticator {
	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 24 * time.Hour
	}
	return &Authenticator{cfg: cfg, logger: logger}
}

// Authenticate accepts either a configured API key or a valid JWT.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	if id, err := a.validateAPIKey(token); err == nil {
		return id, nil
	}

	if claims, err := a.ValidateJWT(token); err == nil {
		return &Identity{
			Subject:   claims.Subject,
			AuthType:  "jwt",
			Metadata:  claims.Metadata,
			ExpiresAt: &claims.ExpiresAt.Time,
		}, nil
	}

	a.logger.WithFields(logrus.Fields{
		"token_prefix": maskToken(token),
		"remote_ip":    clientIPFromContext(ctx),
	}).Warn("Authentication rejected")

	return nil, ErrInvalidToken
}

func (a *Authenticator) validateAPIKey(key string) (*Identity, error) {
	// Constant-time comparison against every configured key so rejection
	// timing does not leak which prefix matched.
	for _, valid := range a.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return &Identity{
				Subject:  keySubject(key),
				AuthType: "api_key",
			}, nil
		}
	}
	return nil, ErrInvalidToken
}

// IssueJWT signs a token for the subject with the configured expiry.
func (a *Authenticator) IssueJWT(subject string, metadata map[string]string) (string, error) {
	now := time.Now()
	claims := &RouterClaims{
		Subject:  subject,
		Metadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "llm-cost-router",
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.JWTExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.JWTSecret))
}

// ValidateJWT parses and verifies an HS256 token.
func (a *Authenticator) ValidateJWT(tokenString string) (*RouterClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RouterClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*RouterClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware authenticates requests, skipping health endpoints. When
// RequireAuth is off it passes everything through untouched.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.cfg.RequireAuth || strings.HasPrefix(r.URL.Path, "/v1/health") {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			ctx := context.WithValue(r.Context(), clientIPContextKey, ClientIP(r))

			identity, err := a.Authenticate(ctx, token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"path":      r.URL.Path,
					"method":    r.Method,
					"remote_ip": ClientIP(r),
				}).WithError(err).Warn("Request rejected by authenticator")
				writeAuthError(w, err)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// ClientIP resolves the caller address, honoring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func clientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPContextKey).(string); ok {
		return ip
	}
	return "unknown"
}

func keySubject(key string) string {
	if len(key) >= 8 {
		return "key_" + key[:8]
	}
	return "key_" + key
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	msg := "Invalid authentication token"
	if errors.Is(err, ErrMissingToken) {
		msg = "Missing authentication token"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"message":"` + msg + `","type":"authentication_error","code":401}}`))
}
