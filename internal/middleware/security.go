package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/security"
)

// SecurityConfig bundles the gateway protection settings.
type SecurityConfig struct {
	Auth      security.AuthConfig       `yaml:"auth"`
	RateLimit security.RateLimitConfig  `yaml:"rate_limit"`
	Request   security.ValidationConfig `yaml:"request"`
}

// SecurityStack composes authentication, rate limiting, and response
// hardening into one middleware chain for the router gateway.
type SecurityStack struct {
	authenticator *security.Authenticator
	rateLimiter   *security.ClientRateLimiter
	validator     *security.RequestValidator
	logger        *logrus.Logger
}

func NewSecurityStack(cfg SecurityConfig, logger *logrus.Logger) (*SecurityStack, error) {
	validator, err := security.NewRequestValidator(cfg.Request, logger)
	if err != nil {
		return nil, err
	}

	return &SecurityStack{
		authenticator: security.NewAuthenticator(cfg.Auth, logger),
		rateLimiter:   security.NewClientRateLimiter(cfg.RateLimit, logger),
		validator:     validator,
		logger:        logger,
	}, nil
}

// Validator exposes the payload validator for handlers that decode bodies
// themselves.
func (s *SecurityStack) Validator() *security.RequestValidator {
	return s.validator
}

// Stop releases background resources.
func (s *SecurityStack) Stop() {
	s.rateLimiter.Stop()
}

// Handler builds the chain. Auth runs before rate limiting so limits key on
// the authenticated subject rather than the raw IP when possible.
func (s *SecurityStack) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next
		handler = s.envelopeMiddleware()(handler)
		handler = s.rateLimiter.Middleware()(handler)
		handler = s.authenticator.Middleware()(handler)
		handler = securityHeaders()(handler)
		return handler
	}
}

func (s *SecurityStack) envelopeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if result := s.validator.ValidateHTTP(r); !result.Valid {
				s.logger.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"errors": result.Errors,
				}).Warn("Request envelope rejected")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"Invalid request","type":"validation_error","code":400}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
