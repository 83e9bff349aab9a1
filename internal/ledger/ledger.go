package ledger

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
)

const dateLayout = "2006-01-02"

// DailyCostSummary accumulates one provider's spend for one calendar day.
// A summary is created lazily on the first query of the day and never
// mutated after the day rolls over.
type DailyCostSummary struct {
	Date              string  `json:"date"`
	TotalQueries      int64   `json:"total_queries"`
	TotalCostAccrued  float64 `json:"total_cost_accrued"`
	TotalTokens       int64   `json:"total_tokens"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	BudgetUtilization float64 `json:"budget_utilization"`
}

// providerLedger holds one provider's day summaries behind its own mutex so
// accrual for different providers never contends.
type providerLedger struct {
	mu   sync.Mutex
	days map[string]*DailyCostSummary
}

// Ledger meters per-provider daily spend against catalog budgets. The budget
// check is advisory: two concurrent requests against a near-exhausted budget
// can both pass and jointly overshoot, matching the documented best-effort
// semantics.
type Ledger struct {
	catalog *catalog.Catalog

	mu        sync.RWMutex // guards the providers map shape only
	providers map[string]*providerLedger

	logger *logrus.Logger
}

// NewLedger creates an empty ledger over the given catalog.
func NewLedger(cat *catalog.Catalog, logger *logrus.Logger) *Ledger {
	return &Ledger{
		catalog:   cat,
		providers: make(map[string]*providerLedger),
		logger:    logger,
	}
}

// EstimateCost computes the cost of a hypothetical call. Pure function of
// the profile; FREE-tier providers always estimate zero.
func (l *Ledger) EstimateCost(profile *catalog.ProviderProfile, inputTokens, outputTokens int) float64 {
	if profile.CostTier == catalog.TierFree {
		return 0
	}
	inputCost := float64(inputTokens) / 1000 * profile.InputCostPer1K
	outputCost := float64(outputTokens) / 1000 * profile.OutputCostPer1K
	return inputCost + outputCost
}

// WouldExceedBudget reports whether accruing estimatedCost today would push
// the provider past its daily budget limit. A zero limit means unmetered.
func (l *Ledger) WouldExceedBudget(profile *catalog.ProviderProfile, estimatedCost float64) bool {
	if profile.DailyBudgetLimit <= 0 {
		return false
	}

	accrued := 0.0
	if summary, ok := l.Summary(profile.Name); ok {
		accrued = summary.TotalCostAccrued
	}
	return accrued+estimatedCost > profile.DailyBudgetLimit
}

// RecordActualCost appends a completed call to today's summary for the
// provider, updating totals and the running latency average.
func (l *Ledger) RecordActualCost(provider string, inputTokens, outputTokens int, latencyMs float64) {
	profile, err := l.catalog.GetProfile(provider)
	if err != nil {
		l.logger.WithError(err).WithField("provider", provider).Warn("Cost recorded for unknown provider")
		return
	}

	cost := l.EstimateCost(profile, inputTokens, outputTokens)

	pl := l.providerLedger(provider)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	today := time.Now().Format(dateLayout)
	summary, ok := pl.days[today]
	if !ok {
		summary = &DailyCostSummary{Date: today}
		pl.days[today] = summary
	}

	summary.TotalQueries++
	summary.TotalCostAccrued += cost
	summary.TotalTokens += int64(inputTokens + outputTokens)

	n := float64(summary.TotalQueries)
	summary.AvgResponseTimeMs = (summary.AvgResponseTimeMs*(n-1) + latencyMs) / n

	if profile.DailyBudgetLimit > 0 {
		summary.BudgetUtilization = summary.TotalCostAccrued / profile.DailyBudgetLimit
	}

	l.logger.WithFields(logrus.Fields{
		"provider":           provider,
		"cost":               cost,
		"total_cost":         summary.TotalCostAccrued,
		"budget_utilization": summary.BudgetUtilization,
	}).Debug("Cost recorded")
}

// Summary returns a copy of the provider's summary for today.
func (l *Ledger) Summary(provider string) (DailyCostSummary, bool) {
	l.mu.RLock()
	pl, ok := l.providers[provider]
	l.mu.RUnlock()
	if !ok {
		return DailyCostSummary{}, false
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	summary, ok := pl.days[time.Now().Format(dateLayout)]
	if !ok {
		return DailyCostSummary{}, false
	}
	return *summary, true
}

// Snapshot returns today's summary for every provider that has recorded
// spend today.
func (l *Ledger) Snapshot() map[string]DailyCostSummary {
	l.mu.RLock()
	names := make([]string, 0, len(l.providers))
	for name := range l.providers {
		names = append(names, name)
	}
	l.mu.RUnlock()

	out := make(map[string]DailyCostSummary, len(names))
	for _, name := range names {
		if summary, ok := l.Summary(name); ok {
			out[name] = summary
		}
	}
	return out
}

func (l *Ledger) providerLedger(name string) *providerLedger {
	l.mu.RLock()
	pl, ok := l.providers[name]
	l.mu.RUnlock()
	if ok {
		return pl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if pl, ok = l.providers[name]; ok {
		return pl
	}
	pl = &providerLedger{days: make(map[string]*DailyCostSummary)}
	l.providers[name] = pl
	return pl
}
