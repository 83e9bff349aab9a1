package types

// LLMResponse is the terminal result of routing one request. At the Route
// boundary Success is always true: a request that exhausts every candidate
// still receives a stub response rather than an error.
type LLMResponse struct {
	Content   string  `json:"content"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	LatencyMs float64 `json:"latency_ms"`
	Success   bool    `json:"success"`
	Attempt   int     `json:"attempt"`
	Retries   int     `json:"retries"`
	TraceID   string  `json:"trace_id"`

	// Fallback marks the deterministic stub path. Visible for debugging;
	// callers should treat the response as a normal success.
	Fallback bool `json:"fallback,omitempty"`
}

// CallOutcome records a single attempt against a single provider. One is
// emitted to the observability sink per attempt.
type CallOutcome struct {
	TraceID    string    `json:"trace_id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Attempt    int       `json:"attempt"`
	TimeoutMs  int64     `json:"timeout_ms"`
	LatencyMs  float64   `json:"latency_ms"`
	Success    bool      `json:"success"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RouteSummary aggregates a completed Route call: total attempts across all
// candidates, total elapsed time, and the provider that finally answered.
type RouteSummary struct {
	TraceID       string  `json:"trace_id"`
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	TotalAttempts int     `json:"total_attempts"`
	ElapsedMs     float64 `json:"elapsed_ms"`
	Fallback      bool    `json:"fallback"`
}
