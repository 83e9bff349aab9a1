package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
	"github.com/tributary-ai/llm-cost-router/internal/health"
	"github.com/tributary-ai/llm-cost-router/internal/ledger"
	"github.com/tributary-ai/llm-cost-router/internal/middleware"
	"github.com/tributary-ai/llm-cost-router/internal/observe"
	"github.com/tributary-ai/llm-cost-router/internal/routing"
	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// Config holds the HTTP gateway settings.
type Config struct {
	Port           string                              `yaml:"port"`
	ReadTimeout    time.Duration                       `yaml:"read_timeout"`
	WriteTimeout   time.Duration                       `yaml:"write_timeout"`
	MaxHeaderBytes int                                 `yaml:"max_header_bytes"`
	Security       middleware.SecurityConfig           `yaml:"security"`
	Schema         middleware.SchemaValidationConfig   `yaml:"schema"`
}

// Server is the HTTP gateway in front of the routing core.
type Server struct {
	orchestrator *routing.Orchestrator
	catalog      *catalog.Catalog
	tracker      *health.Tracker
	ledger       *ledger.Ledger
	recorder     *observe.Recorder

	security *middleware.SecurityStack
	schema   *middleware.SchemaValidator

	httpServer *http.Server
	cfg        Config
	logger     *logrus.Logger
}

func NewServer(
	orchestrator *routing.Orchestrator,
	cat *catalog.Catalog,
	tracker *health.Tracker,
	costs *ledger.Ledger,
	recorder *observe.Recorder,
	cfg Config,
	logger *logrus.Logger,
) (*Server, error) {
	securityStack, err := middleware.NewSecurityStack(cfg.Security, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize security stack: %w", err)
	}

	schemaValidator, err := middleware.NewSchemaValidator(cfg.Schema, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize schema validator: %w", err)
	}

	return &Server{
		orchestrator: orchestrator,
		catalog:      cat,
		tracker:      tracker,
		ledger:       costs,
		recorder:     recorder,
		security:     securityStack,
		schema:       schemaValidator,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           ":" + s.cfg.Port,
		Handler:        s.Routes(),
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.cfg.Port).Info("Starting cost router gateway")
	return s.httpServer.ListenAndServe()
}

// Stop drains in-flight requests and releases middleware resources.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping cost router gateway")
	s.security.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Routes builds the full handler tree. Exposed for tests.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.security.Handler())
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.schema.Middleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/route", s.handleRoute).Methods("POST")
	api.HandleFunc("/routing/decision", s.handleRoutingDecision).Methods("POST")
	api.HandleFunc("/providers", s.handleListProviders).Methods("GET")
	api.HandleFunc("/providers/{name}", s.handleGetProvider).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/health/{name}", s.handleProviderHealth).Methods("GET")
	api.HandleFunc("/costs", s.handleCosts).Methods("GET")
	api.HandleFunc("/costs/{name}", s.handleProviderCosts).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")

	// Liveness endpoint without the /v1 prefix for probes.
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.registerSwaggerRoutes(r)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRoutingRequest(w, r)
	if !ok {
		return
	}

	resp := s.orchestrator.Route(r.Context(), req)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRoutingDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRoutingRequest(w, r)
	if !ok {
		return
	}

	decision := s.orchestrator.Decide(req)
	s.writeJSON(w, http.StatusOK, decision)
}

func (s *Server) decodeRoutingRequest(w http.ResponseWriter, r *http.Request) (*types.RoutingRequest, bool) {
	var req types.RoutingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return nil, false
	}
	req.Timestamp = time.Now()

	if result := s.security.Validator().ValidateRoutingRequest(&req); !result.Valid {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Request validation failed",
				"type":    "validation_error",
				"code":    http.StatusBadRequest,
				"details": result.Errors,
			},
		})
		return nil, false
	}

	return &req, true
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	profiles := s.catalog.ListAll()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": profiles,
		"count":     len(profiles),
	})
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	profile, err := s.catalog.GetProfile(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Provider %s not found", name))
		return
	}

	response := map[string]interface{}{"profile": profile}
	if snap, ok := s.tracker.Snapshot()[name]; ok {
		response["health"] = snap
	}
	if summary, ok := s.ledger.Summary(name); ok {
		response["costs"] = summary
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.tracker.Snapshot()

	degraded := false
	for _, state := range snapshot {
		if state.Status == health.StatusOpen {
			degraded = true
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if degraded {
		status = "degraded"
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"providers": snapshot,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	state, ok := s.tracker.Snapshot()[name]
	if !ok {
		if _, err := s.catalog.GetProfile(name); err != nil {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("Provider %s not found", name))
			return
		}
		// Known but never called: closed breaker by definition.
		state = health.ProviderHealth{Status: health.StatusClosed}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":  name,
		"health":    state,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"costs":     s.ledger.Snapshot(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleProviderCosts(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	summary, ok := s.ledger.Summary(name)
	if !ok {
		if _, err := s.catalog.GetProfile(name); err != nil {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("Provider %s not found", name))
			return
		}
		summary = ledger.DailyCostSummary{Date: time.Now().UTC().Format("2006-01-02")}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": name,
		"summary":  summary,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	attempts, routes := s.recorder.Counts()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recent":         s.recorder.Recent(),
		"total_attempts": attempts,
		"total_routes":   routes,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "api_error",
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
