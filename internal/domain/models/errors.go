package models

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies source failures so the scheduler can pick a
// backoff strategy.
type FetchErrorKind int

const (
	// FetchTransient covers network errors and 5xx: retry soon.
	FetchTransient FetchErrorKind = iota
	// FetchRateLimited means the platform asked us to slow down (429).
	FetchRateLimited
	// FetchBlocked means access is actively denied (403, bot challenge).
	FetchBlocked
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchRateLimited:
		return "rate_limited"
	case FetchBlocked:
		return "blocked"
	default:
		return "transient"
	}
}

// FetchError wraps a source failure with its classification and platform.
type FetchError struct {
	Kind     FetchErrorKind
	Platform Platform
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Platform, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func NewFetchError(kind FetchErrorKind, platform Platform, err error) *FetchError {
	return &FetchError{Kind: kind, Platform: platform, Err: err}
}

// AnalysisErrorKind classifies analyzer failures.
type AnalysisErrorKind int

const (
	// AnalysisUnavailable means the model endpoint could not be reached.
	AnalysisUnavailable AnalysisErrorKind = iota
	// AnalysisTimeout means the call exceeded its deadline.
	AnalysisTimeout
	// AnalysisMalformed means the model output never parsed/validated
	// within the retry budget.
	AnalysisMalformed
)

func (k AnalysisErrorKind) String() string {
	switch k {
	case AnalysisTimeout:
		return "timeout"
	case AnalysisMalformed:
		return "malformed_output"
	default:
		return "unavailable"
	}
}

// AnalysisError wraps an analyzer failure with its classification.
type AnalysisError struct {
	Kind AnalysisErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis (%s): %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func NewAnalysisError(kind AnalysisErrorKind, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Err: err}
}

// ErrLedgerUnavailable marks dedup ledger failures: fatal for the post,
// never for the cycle.
var ErrLedgerUnavailable = errors.New("dedup ledger unavailable")
