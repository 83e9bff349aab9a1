package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// Probe is the slice of the provider capability the prober needs.
type Probe interface {
	Name() string
	HealthProbe(ctx context.Context) error
}

// Prober periodically probes providers and feeds the results through the
// same tracker paths the request path uses, so probe outcomes and request
// outcomes share one set of counters.
type Prober struct {
	tracker  *Tracker
	targets  []Probe
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewProber creates a prober over a fixed set of targets.
func NewProber(tracker *Tracker, targets []Probe, interval, timeout time.Duration, logger *logrus.Logger) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		tracker:  tracker,
		targets:  targets,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run probes on a fixed interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

func (p *Prober) probeAll(ctx context.Context) {
	for _, target := range p.targets {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := target.HealthProbe(probeCtx)
		cancel()

		latency := float64(time.Since(start).Milliseconds())
		if err != nil {
			p.tracker.RecordFailure(target.Name(), types.ClassifyError(err))
			p.logger.WithError(err).WithField("provider", target.Name()).Warn("Health probe failed")
			continue
		}

		p.tracker.RecordSuccess(target.Name(), latency)
		p.logger.WithFields(logrus.Fields{
			"provider":   target.Name(),
			"latency_ms": latency,
		}).Debug("Health probe passed")
	}
}
