package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
	"github.com/tributary-ai/llm-cost-router/internal/health"
	"github.com/tributary-ai/llm-cost-router/internal/ledger"
	"github.com/tributary-ai/llm-cost-router/internal/observe"
	"github.com/tributary-ai/llm-cost-router/internal/providers"
	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// ExecutorConfig tunes per-candidate retries and timeouts.
type ExecutorConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`
	// BaseTimeout bounds the first attempt; later attempts grow by
	// BackoffBase up to BackoffMaxTimeout.
	BaseTimeout time.Duration `yaml:"base_timeout"`
	// FreeTierBaseTimeout replaces BaseTimeout for free (local) providers,
	// which trade network latency for compute latency.
	FreeTierBaseTimeout time.Duration `yaml:"free_tier_base_timeout"`
	BackoffBase         float64       `yaml:"backoff_base"`
	BackoffMaxTimeout   time.Duration `yaml:"backoff_max_timeout"`
}

// DefaultExecutorConfig returns the standard retry tuning.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRetries:          3,
		BaseTimeout:         10 * time.Second,
		FreeTierBaseTimeout: 15 * time.Second,
		BackoffBase:         2.0,
		BackoffMaxTimeout:   30 * time.Second,
	}
}

// Executor performs the bounded, retried call against one candidate and
// reports every outcome to the health tracker, the cost ledger, and the
// observability sink.
type Executor struct {
	registry *providers.Registry
	health   *health.Tracker
	ledger   *ledger.Ledger
	sink     observe.Sink
	cfg      ExecutorConfig
	logger   *logrus.Logger
}

// NewExecutor creates an executor. Zero config fields fall back to defaults.
func NewExecutor(registry *providers.Registry, tracker *health.Tracker, costs *ledger.Ledger, sink observe.Sink, cfg ExecutorConfig, logger *logrus.Logger) *Executor {
	def := DefaultExecutorConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseTimeout <= 0 {
		cfg.BaseTimeout = def.BaseTimeout
	}
	if cfg.FreeTierBaseTimeout <= 0 {
		cfg.FreeTierBaseTimeout = def.FreeTierBaseTimeout
	}
	if cfg.BackoffBase <= 1 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMaxTimeout <= 0 {
		cfg.BackoffMaxTimeout = def.BackoffMaxTimeout
	}

	return &Executor{
		registry: registry,
		health:   tracker,
		ledger:   costs,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
	}
}

// Execute runs the candidate with bounded timeouts and exponential backoff.
// On success the response is returned immediately; on exhaustion the last
// error is returned so the orchestrator can advance to the next candidate.
// The attempts count reflects how many calls were actually made.
func (e *Executor) Execute(ctx context.Context, candidate Candidate, req *types.RoutingRequest) (resp *types.LLMResponse, attempts int, err error) {
	name := candidate.Provider.Name
	provider, ok := e.registry.Get(name)
	if !ok {
		return nil, 0, fmt.Errorf("provider %q: %w", name, types.ErrProviderUnavailable)
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries+1; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempts, fmt.Errorf("request cancelled before attempt %d: %w", attempt, ctxErr)
		}
		attempts = attempt

		timeout := e.attemptTimeout(candidate.Provider, attempt)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)

		start := time.Now()
		content, callErr := provider.Complete(attemptCtx, candidate.Model.Name, req.Prompt, req.MaxTokens, req.Temperature)
		cancel()
		latencyMs := float64(time.Since(start).Microseconds()) / 1000

		if callErr == nil {
			e.health.RecordSuccess(name, latencyMs)
			e.ledger.RecordActualCost(name, req.EstimatedInputTokens(), len(content)/4, latencyMs)
			e.sink.RecordAttempt(types.CallOutcome{
				TraceID:   req.TraceID,
				Provider:  name,
				Model:     candidate.Model.Name,
				Attempt:   attempt,
				TimeoutMs: timeout.Milliseconds(),
				LatencyMs: latencyMs,
				Success:   true,
			})

			return &types.LLMResponse{
				Content:   content,
				Provider:  name,
				Model:     candidate.Model.Name,
				LatencyMs: latencyMs,
				Success:   true,
				Attempt:   attempt,
				Retries:   attempt - 1,
				TraceID:   req.TraceID,
			}, attempts, nil
		}

		kind := types.ClassifyError(callErr)
		lastErr = callErr

		e.health.RecordFailure(name, kind)
		e.sink.RecordAttempt(types.CallOutcome{
			TraceID:   req.TraceID,
			Provider:  name,
			Model:     candidate.Model.Name,
			Attempt:   attempt,
			TimeoutMs: timeout.Milliseconds(),
			LatencyMs: latencyMs,
			Success:   false,
			ErrorKind: kind,
			Error:     callErr.Error(),
		})

		if !kind.Retryable() || attempt == e.cfg.MaxRetries+1 {
			break
		}

		delay := e.backoffDelay(attempt)
		e.logger.WithFields(logrus.Fields{
			"trace_id": req.TraceID,
			"provider": name,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		}).Debug("Retrying after backoff delay")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, attempts, fmt.Errorf("request cancelled during retry backoff: %w", ctx.Err())
		}
	}

	return nil, attempts, fmt.Errorf("provider %s exhausted after %d attempts: %w", name, attempts, lastErr)
}

// attemptTimeout computes min(base * backoffBase^(attempt-1), cap).
func (e *Executor) attemptTimeout(profile *catalog.ProviderProfile, attempt int) time.Duration {
	base := e.cfg.BaseTimeout
	if profile.CostTier == catalog.TierFree {
		base = e.cfg.FreeTierBaseTimeout
	}

	multiplier := math.Pow(e.cfg.BackoffBase, float64(attempt-1))
	timeout := time.Duration(float64(base) * multiplier)
	if timeout > e.cfg.BackoffMaxTimeout {
		timeout = e.cfg.BackoffMaxTimeout
	}
	return timeout
}

// backoffDelay computes the inter-attempt sleep, in seconds scaled by the
// backoff base and capped like the timeouts.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	multiplier := math.Pow(e.cfg.BackoffBase, float64(attempt-1))
	delay := time.Duration(multiplier * float64(time.Second))
	if delay > e.cfg.BackoffMaxTimeout {
		delay = e.cfg.BackoffMaxTimeout
	}
	return delay
}
