package types

import (
	"time"
)

// RoutingRequest describes one unit of completion work to be routed. It is
// immutable once constructed; the router never mutates it.
type RoutingRequest struct {
	TraceID string `json:"trace_id"`
	Prompt  string `json:"prompt"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`

	// Routing hints
	TaskComplexity  float64 `json:"task_complexity,omitempty"`    // [0,1]
	ContextTokens   int     `json:"context_tokens,omitempty"`     // required context window
	LatencyBudgetMs int     `json:"latency_budget_ms,omitempty"`  // 0 = no budget
	MaxCostPerQuery float64 `json:"max_cost_per_query,omitempty"` // 0 = unlimited

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// EstimatedInputTokens approximates the prompt's token count.
// Rough approximation: 4 chars per token.
func (r *RoutingRequest) EstimatedInputTokens() int {
	return len(r.Prompt) / 4
}

// EstimatedOutputTokens returns the completion size assumed for cost
// estimation when the caller did not cap max_tokens.
func (r *RoutingRequest) EstimatedOutputTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return 256
}
