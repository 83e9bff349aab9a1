package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-cost-router/internal/observe"
	"github.com/tributary-ai/llm-cost-router/internal/types"
)

// FallbackProviderName labels the deterministic stub response used when no
// real provider could serve the request.
const FallbackProviderName = "local_stub"

const fallbackPromptExcerptLen = 100

// Orchestrator walks the ranked candidate list and guarantees that every
// request receives a successful response: if all candidates are exhausted it
// synthesizes an instantaneous stub instead of failing. Route never returns
// an error.
type Orchestrator struct {
	selector *Selector
	executor *Executor
	sink     observe.Sink
	logger   *logrus.Logger
}

// NewOrchestrator wires the selector and executor together.
func NewOrchestrator(selector *Selector, executor *Executor, sink observe.Sink, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		selector: selector,
		executor: executor,
		sink:     sink,
		logger:   logger,
	}
}

// Route selects, executes, and if necessary falls back. The returned
// response always has Success=true; failures are visible only through the
// observability sink and the Fallback flag.
func (o *Orchestrator) Route(ctx context.Context, req *types.RoutingRequest) *types.LLMResponse {
	start := time.Now()

	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}

	decision := o.selector.Select(req)

	totalAttempts := 0
	for _, candidate := range decision.Candidates {
		resp, attempts, err := o.executor.Execute(ctx, candidate, req)
		totalAttempts += attempts
		if err != nil {
			o.logger.WithError(err).WithFields(logrus.Fields{
				"trace_id": req.TraceID,
				"provider": candidate.Provider.Name,
			}).Warn("Candidate exhausted, advancing")
			continue
		}
		o.sink.RecordRoute(types.RouteSummary{
			TraceID:       req.TraceID,
			Provider:      resp.Provider,
			Model:         resp.Model,
			TotalAttempts: totalAttempts,
			ElapsedMs:     float64(time.Since(start).Microseconds()) / 1000,
		})
		return resp
	}

	// Every candidate failed or none existed: deterministic stub, still a
	// success at this boundary.
	resp := o.fallbackResponse(req)
	o.sink.RecordRoute(types.RouteSummary{
		TraceID:       req.TraceID,
		Provider:      resp.Provider,
		Model:         resp.Model,
		TotalAttempts: totalAttempts,
		ElapsedMs:     float64(time.Since(start).Microseconds()) / 1000,
		Fallback:      true,
	})
	return resp
}

// Decide returns the ranked decision without executing anything.
func (o *Orchestrator) Decide(req *types.RoutingRequest) *RoutingDecision {
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}
	return o.selector.Select(req)
}

func (o *Orchestrator) fallbackResponse(req *types.RoutingRequest) *types.LLMResponse {
	excerpt := req.Prompt
	if len(excerpt) > fallbackPromptExcerptLen {
		excerpt = excerpt[:fallbackPromptExcerptLen]
	}

	content := fmt.Sprintf(
		"All providers are currently unavailable. Your request (%q) was received and could not be completed right now; please retry shortly.",
		excerpt,
	)

	return &types.LLMResponse{
		Content:   content,
		Provider:  FallbackProviderName,
		Model:     FallbackProviderName,
		LatencyMs: 0,
		Success:   true,
		Attempt:   1,
		Retries:   0,
		TraceID:   req.TraceID,
		Fallback:  true,
	}
}
