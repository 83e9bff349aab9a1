package health

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// Status is a circuit breaker state.
type Status string

const (
	// StatusClosed means the provider is eligible for selection.
	StatusClosed Status = "closed"
	// StatusOpen means the provider is excluded until OpenUntil passes.
	StatusOpen Status = "open"
)

// ProviderHealth is a point-in-time snapshot of one provider's breaker
// state, safe to serialize for monitoring endpoints.
type ProviderHealth struct {
	Status              Status     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalSuccesses      int64      `json:"total_successes"`
	LastCheckedAt       time.Time  `json:"last_checked_at"`
	LastLatencyMs       float64    `json:"last_latency_ms"`
	OpenUntil           *time.Time `json:"open_until,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// providerState is the mutable breaker state for one provider. Its mutex is
// the only synchronization for that provider; unrelated providers never
// contend with each other.
type providerState struct {
	mu sync.Mutex

	status              Status
	consecutiveFailures int
	totalSuccesses      int64
	lastCheckedAt       time.Time
	lastLatencyMs       float64
	openUntil           time.Time
	lastError           string
}

// Config tunes the circuit breaker.
type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// Cooldown is how long an opened breaker excludes the provider.
	Cooldown time.Duration
}

// DefaultConfig returns the standard breaker tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         300 * time.Second,
	}
}

// Tracker records per-provider success/failure outcomes and answers
// availability checks. All methods are safe for concurrent use from many
// in-flight requests touching the same provider.
type Tracker struct {
	mu        sync.RWMutex // guards the providers map shape only
	providers map[string]*providerState

	cfg    Config
	logger *logrus.Logger
}

// NewTracker creates a tracker. Zero config fields fall back to defaults.
func NewTracker(cfg Config, logger *logrus.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	return &Tracker{
		providers: make(map[string]*providerState),
		cfg:       cfg,
		logger:    logger,
	}
}

func (t *Tracker) state(name string) *providerState {
	t.mu.RLock()
	state, ok := t.providers[name]
	t.mu.RUnlock()
	if ok {
		return state
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok = t.providers[name]; ok {
		return state
	}
	state = &providerState{status: StatusClosed}
	t.providers[name] = state
	return state
}

// IsAvailable reports whether the provider may be selected. An OPEN breaker
// whose cooldown has expired transitions back to CLOSED here, allowing one
// trial attempt; the retained failure count reopens it immediately if that
// trial fails.
func (t *Tracker) IsAvailable(name string) bool {
	state := t.state(name)

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.status == StatusOpen {
		if time.Now().Before(state.openUntil) {
			return false
		}
		// Cooldown expired: half-open trial. consecutiveFailures keeps its
		// pre-transition value so a failed trial trips the breaker again.
		state.status = StatusClosed
		state.openUntil = time.Time{}
		t.logger.WithField("provider", name).Info("Circuit breaker cooldown expired, allowing trial")
	}

	return true
}

// RecordSuccess resets the failure streak and closes the breaker.
func (t *Tracker) RecordSuccess(name string, latencyMs float64) {
	state := t.state(name)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.status = StatusClosed
	state.consecutiveFailures = 0
	state.totalSuccesses++
	state.lastCheckedAt = time.Now()
	state.lastLatencyMs = latencyMs
	state.openUntil = time.Time{}
	state.lastError = ""
}

// RecordFailure increments the failure streak and opens the breaker once the
// threshold is reached.
func (t *Tracker) RecordFailure(name string, kind types.ErrorKind) {
	state := t.state(name)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.consecutiveFailures++
	state.lastCheckedAt = time.Now()
	state.lastError = string(kind)

	if state.consecutiveFailures >= t.cfg.FailureThreshold {
		state.status = StatusOpen
		state.openUntil = time.Now().Add(t.cfg.Cooldown)

		t.logger.WithFields(logrus.Fields{
			"provider":   name,
			"failures":   state.consecutiveFailures,
			"open_until": state.openUntil.Format(time.RFC3339),
			"error_kind": string(kind),
		}).Warn("Circuit breaker opened")
	}
}

// Snapshot returns a copy of every tracked provider's state.
func (t *Tracker) Snapshot() map[string]ProviderHealth {
	t.mu.RLock()
	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	t.mu.RUnlock()

	out := make(map[string]ProviderHealth, len(names))
	for _, name := range names {
		state := t.state(name)

		state.mu.Lock()
		h := ProviderHealth{
			Status:              state.status,
			ConsecutiveFailures: state.consecutiveFailures,
			TotalSuccesses:      state.totalSuccesses,
			LastCheckedAt:       state.lastCheckedAt,
			LastLatencyMs:       state.lastLatencyMs,
			LastError:           state.lastError,
		}
		if !state.openUntil.IsZero() {
			until := state.openUntil
			h.OpenUntil = &until
		}
		state.mu.Unlock()

		out[name] = h
	}
	return out
}
