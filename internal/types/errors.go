package types

import (
	"context"
	"errors"
)

// ErrorKind classifies why an attempt or candidate failed. The kind decides
// the executor's reaction: timeouts and provider errors are retried with
// backoff, unavailable and over-budget candidates are skipped outright.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindProviderError  ErrorKind = "provider_error"
	ErrorKindUnavailable    ErrorKind = "provider_unavailable"
	ErrorKindBudgetExceeded ErrorKind = "budget_exceeded"
)

var (
	// ErrProviderUnavailable marks a provider excluded by the circuit
	// breaker, disabled in the catalog, or missing a credential.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrBudgetExceeded marks a candidate filtered by the per-query cap or
	// the provider's daily budget.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrAllCandidatesExhausted is an internal signal: every ranked
	// candidate failed. The orchestrator converts it to the stub fallback;
	// it never reaches the Route caller.
	ErrAllCandidatesExhausted = errors.New("all candidates exhausted")
)

// Retryable reports whether a failed attempt should be retried against the
// same candidate.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTimeout || k == ErrorKindProviderError
}

// ClassifyError maps an attempt error to its kind. Deadline overruns count
// as timeouts; everything else is a provider-side failure.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrProviderUnavailable):
		return ErrorKindUnavailable
	case errors.Is(err, ErrBudgetExceeded):
		return ErrorKindBudgetExceeded
	default:
		return ErrorKindProviderError
	}
}
