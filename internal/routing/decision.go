package routing

import (
	"time"

	"github.com/tributary-ai/llm-cost-router/internal/catalog"
)

// Candidate is one scored (provider, model) pair.
type Candidate struct {
	Provider      *catalog.ProviderProfile `json:"provider"`
	Model         catalog.ModelSpec        `json:"model"`
	Score         float64                  `json:"score"`
	EstimatedCost float64                  `json:"estimated_cost"`
}

// RoutingDecision is the ranked candidate list for one request, best first.
// An empty list means every provider was filtered out and the orchestrator
// should go straight to the fallback.
type RoutingDecision struct {
	// Candidates ordered descending by score; ties keep catalog
	// registration order.
	Candidates []Candidate `json:"candidates"`

	// Human-readable reasoning for the top pick's dominant factors.
	Reasoning []string `json:"reasoning"`

	TraceID    string    `json:"trace_id"`
	ProducedAt time.Time `json:"produced_at"`

	// Skipped maps provider names to the reason they were filtered out.
	Skipped map[string]string `json:"skipped,omitempty"`
}
