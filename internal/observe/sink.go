package observe

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// Sink receives one structured event per attempt and one summary event per
// completed route. It is a write-only dependency of the routing core.
type Sink interface {
	RecordAttempt(outcome types.CallOutcome)
	RecordRoute(summary types.RouteSummary)
}

// RecorderConfig tunes the in-memory event recorder.
type RecorderConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

// attemptRecord pairs an outcome with its capture time for introspection.
type attemptRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Outcome   types.CallOutcome `json:"outcome"`
}

// Recorder is the default sink: every event goes to structured logs, and the
// most recent attempts are retained in a bounded ring for the introspection
// endpoints.
type Recorder struct {
	logger *logrus.Logger

	mu     sync.Mutex
	ring   []attemptRecord
	next   int
	filled bool

	attemptCount int64
	routeCount   int64
}

// NewRecorder creates a recorder. A zero buffer size defaults to 256 events.
func NewRecorder(cfg RecorderConfig, logger *logrus.Logger) *Recorder {
	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}
	return &Recorder{
		logger: logger,
		ring:   make([]attemptRecord, size),
	}
}

// RecordAttempt logs and retains one attempt outcome.
func (r *Recorder) RecordAttempt(outcome types.CallOutcome) {
	fields := logrus.Fields{
		"trace_id":   outcome.TraceID,
		"provider":   outcome.Provider,
		"model":      outcome.Model,
		"attempt":    outcome.Attempt,
		"timeout_ms": outcome.TimeoutMs,
		"latency_ms": outcome.LatencyMs,
		"ok":         outcome.Success,
	}
	if outcome.ErrorKind != types.ErrorKindNone {
		fields["error_kind"] = string(outcome.ErrorKind)
	}

	if outcome.Success {
		r.logger.WithFields(fields).Info("Provider attempt succeeded")
	} else {
		r.logger.WithFields(fields).Warn("Provider attempt failed")
	}

	r.mu.Lock()
	r.ring[r.next] = attemptRecord{Timestamp: time.Now().UTC(), Outcome: outcome}
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.filled = true
	}
	r.attemptCount++
	r.mu.Unlock()
}

// RecordRoute logs the aggregate line for one completed Route call.
func (r *Recorder) RecordRoute(summary types.RouteSummary) {
	r.mu.Lock()
	r.routeCount++
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"trace_id":       summary.TraceID,
		"provider":       summary.Provider,
		"model":          summary.Model,
		"total_attempts": summary.TotalAttempts,
		"elapsed_ms":     summary.ElapsedMs,
		"fallback":       summary.Fallback,
	}).Info("Request routed")
}

// Recent returns retained attempt outcomes, oldest first.
func (r *Recorder) Recent() []types.CallOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []attemptRecord
	if r.filled {
		records = append(records, r.ring[r.next:]...)
		records = append(records, r.ring[:r.next]...)
	} else {
		records = append(records, r.ring[:r.next]...)
	}

	out := make([]types.CallOutcome, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Outcome)
	}
	return out
}

// Counts returns lifetime attempt and route totals.
func (r *Recorder) Counts() (attempts, routes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attemptCount, r.routeCount
}

var _ Sink = (*Recorder)(nil)
