package routing

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
	"github.com/tributary-ai/llm-cost-router/internal/health"
	"github.com/tributary-ai/llm-cost-router/internal/ledger"
	"github.com/tributary-ai/llm-cost-router/internal/providers"
	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// Weights blend the scoring factors. They should sum to roughly 1.0 but the
// selector does not normalize them.
type Weights struct {
	Quality float64 `yaml:"quality"`
	Speed   float64 `yaml:"speed"`
	Cost    float64 `yaml:"cost"`
	Context float64 `yaml:"context_adequacy"`
}

// DefaultWeights returns the standard scoring blend.
func DefaultWeights() Weights {
	return Weights{Quality: 0.4, Speed: 0.2, Cost: 0.3, Context: 0.1}
}

const (
	// complexityBonus rewards matching model tier to task complexity.
	complexityBonus = 0.1
	// complexHigh and complexLow bound the bonus bands.
	complexHigh = 0.7
	complexLow  = 0.3

	// tightLatencyThresholdMs: below this latency budget the speed factor
	// gets a further multiplicative boost.
	tightLatencyThresholdMs = 2000
	tightLatencySpeedBoost  = 1.2
)

// Selector ranks (provider, model) candidates for a request by blending
// quality, speed, cost tier, and context adequacy against live health and
// budget state. Select performs no I/O and never blocks.
type Selector struct {
	catalog  *catalog.Catalog
	registry *providers.Registry
	health   *health.Tracker
	ledger   *ledger.Ledger
	weights  Weights
	logger   *logrus.Logger
}

// NewSelector creates a selector. Zero weights fall back to defaults.
func NewSelector(cat *catalog.Catalog, registry *providers.Registry, tracker *health.Tracker, costs *ledger.Ledger, weights Weights, logger *logrus.Logger) *Selector {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Selector{
		catalog:  cat,
		registry: registry,
		health:   tracker,
		ledger:   costs,
		weights:  weights,
		logger:   logger,
	}
}

// Select produces the ranked decision for a request. Identical catalog,
// health, and ledger state always yields an identical ordering.
func (s *Selector) Select(req *types.RoutingRequest) *RoutingDecision {
	decision := &RoutingDecision{
		TraceID:    req.TraceID,
		ProducedAt: time.Now(),
		Skipped:    make(map[string]string),
	}

	inputTokens := req.EstimatedInputTokens()
	outputTokens := req.EstimatedOutputTokens()

	for _, profile := range s.catalog.ListEnabled() {
		if skip := s.filterProvider(profile, req, inputTokens, outputTokens); skip != "" {
			decision.Skipped[profile.Name] = skip
			continue
		}

		estCost := s.ledger.EstimateCost(profile, inputTokens, outputTokens)
		for _, model := range profile.Models {
			decision.Candidates = append(decision.Candidates, Candidate{
				Provider:      profile,
				Model:         model,
				Score:         s.score(profile, model, req),
				EstimatedCost: estCost,
			})
		}
	}

	// Stable sort keeps catalog registration order as the tie break, so
	// identical inputs always produce identical orderings.
	sort.SliceStable(decision.Candidates, func(i, j int) bool {
		return decision.Candidates[i].Score > decision.Candidates[j].Score
	})

	if len(decision.Candidates) == 0 {
		decision.Reasoning = append(decision.Reasoning, "no eligible providers, fallback required")
		s.logger.WithField("trace_id", req.TraceID).Warn("No routing candidates available")
		return decision
	}

	decision.Reasoning = s.explain(decision.Candidates[0], req)

	s.logger.WithFields(logrus.Fields{
		"trace_id":   req.TraceID,
		"candidates": len(decision.Candidates),
		"top":        decision.Candidates[0].Provider.Name,
		"top_model":  decision.Candidates[0].Model.Name,
		"top_score":  decision.Candidates[0].Score,
	}).Debug("Routing decision produced")

	return decision
}

// filterProvider returns a non-empty skip reason when the provider cannot
// serve this request.
func (s *Selector) filterProvider(profile *catalog.ProviderProfile, req *types.RoutingRequest, inputTokens, outputTokens int) string {
	if _, ok := s.registry.Get(profile.Name); !ok {
		// A provider whose credential was absent at startup is never
		// registered, so registry presence doubles as the credential check.
		if profile.RequiresCredential {
			return "missing credential"
		}
		return "no implementation registered"
	}

	if !s.health.IsAvailable(profile.Name) {
		return "circuit breaker open"
	}

	estCost := s.ledger.EstimateCost(profile, inputTokens, outputTokens)
	if req.MaxCostPerQuery > 0 && estCost > req.MaxCostPerQuery {
		return fmt.Sprintf("estimated cost $%.6f exceeds per-query cap", estCost)
	}
	if s.ledger.WouldExceedBudget(profile, estCost) {
		return "daily budget exhausted"
	}

	return ""
}

func (s *Selector) score(profile *catalog.ProviderProfile, model catalog.ModelSpec, req *types.RoutingRequest) float64 {
	speed := profile.SpeedScore
	if req.LatencyBudgetMs > 0 && req.LatencyBudgetMs < tightLatencyThresholdMs {
		speed *= tightLatencySpeedBoost
	}

	contextAdequacy := contextAdequacy(profile.MaxContextTokens, req.ContextTokens)
	costFactor := 1 - profile.CostTier.Normalized()

	score := s.weights.Quality*profile.QualityScore +
		s.weights.Speed*speed +
		s.weights.Cost*costFactor +
		s.weights.Context*contextAdequacy

	if bonusApplies(req.TaskComplexity, model.Tier) {
		score += complexityBonus
	}

	return score
}

func bonusApplies(complexity float64, modelTier string) bool {
	if complexity > complexHigh && modelTier == catalog.ModelTierPowerful {
		return true
	}
	if complexity < complexLow && modelTier == catalog.ModelTierFast {
		return true
	}
	return false
}

func contextAdequacy(maxContext, required int) float64 {
	if required < 1 {
		required = 1
	}
	adequacy := float64(maxContext) / float64(required)
	if adequacy > 1 {
		adequacy = 1
	}
	return adequacy
}

// explain summarizes the top pick's dominant factors in human terms.
func (s *Selector) explain(top Candidate, req *types.RoutingRequest) []string {
	reasons := []string{
		fmt.Sprintf("selected %s/%s (score %.3f)", top.Provider.Name, top.Model.Name, top.Score),
	}

	switch top.Provider.CostTier {
	case catalog.TierFree:
		reasons = append(reasons, "free")
	case catalog.TierLow:
		reasons = append(reasons, "low cost")
	default:
		reasons = append(reasons, fmt.Sprintf("estimated cost $%.6f", top.EstimatedCost))
	}

	if contextAdequacy(top.Provider.MaxContextTokens, req.ContextTokens) >= 1 {
		reasons = append(reasons, "sufficient context")
	} else {
		reasons = append(reasons, "partial context coverage")
	}

	if req.TaskComplexity > complexHigh && top.Model.Tier == catalog.ModelTierPowerful {
		reasons = append(reasons, "handles complex tasks")
	}
	if req.TaskComplexity < complexLow && top.Model.Tier == catalog.ModelTierFast {
		reasons = append(reasons, "fast tier for simple task")
	}
	if req.LatencyBudgetMs > 0 && req.LatencyBudgetMs < tightLatencyThresholdMs {
		reasons = append(reasons, "speed boosted for tight latency budget")
	}

	return reasons
}
