package core

import (
	"fmt"
	"time"
)

// ErrorKind classifies a provider failure. Failover logic is a pure
// function of the kind, never of a concrete upstream error type.
type ErrorKind string

const (
	KindRateLimitExceeded ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindAuthFailed        ErrorKind = "AUTH_FAILED"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindUpstreamError     ErrorKind = "UPSTREAM_ERROR"
	KindTimeout           ErrorKind = "TIMEOUT"
	KindMalformed         ErrorKind = "MALFORMED"

	// KindAllUnavailable is the terminal aggregate produced by the router
	// after exhausting every candidate provider.
	KindAllUnavailable ErrorKind = "ALL_PROVIDERS_UNAVAILABLE"
)

// ProviderError is the one error type allowed to cross the provider
// client boundary.
type ProviderError struct {
	Kind       ErrorKind
	Provider   ProviderID
	Message    string
	RetryAfter time.Duration // hint from the upstream, zero when absent
	Cause      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Provider != "" && e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Provider, msg, e.Cause)
	case e.Provider != "":
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Provider, msg)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, msg)
	}
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by kind.
func (e *ProviderError) Is(target error) bool {
	if t, ok := target.(*ProviderError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewProviderError creates a tagged provider error.
func NewProviderError(kind ErrorKind, provider ProviderID, message string, cause error) *ProviderError {
	return &ProviderError{
		Kind:     kind,
		Provider: provider,
		Message:  message,
		Cause:    cause,
	}
}

// Predefined errors for errors.Is matching.
var (
	ErrRateLimitExceeded = &ProviderError{Kind: KindRateLimitExceeded, Message: "provider rate limit exceeded"}
	ErrAuthFailed        = &ProviderError{Kind: KindAuthFailed, Message: "provider authentication failed"}
	ErrNotFound          = &ProviderError{Kind: KindNotFound, Message: "data not found"}
	ErrUpstream          = &ProviderError{Kind: KindUpstreamError, Message: "upstream error"}
	ErrTimeout           = &ProviderError{Kind: KindTimeout, Message: "provider timeout"}
	ErrMalformed         = &ProviderError{Kind: KindMalformed, Message: "malformed provider response"}

	ErrAllProvidersUnavailable = &ProviderError{Kind: KindAllUnavailable, Message: "all providers unavailable"}
)

// ErrKind extracts the kind from an error, or empty when it is not a
// ProviderError.
func ErrKind(err error) ErrorKind {
	if pe, ok := err.(*ProviderError); ok {
		return pe.Kind
	}
	return ""
}

// CountsTowardFailure reports whether an error kind feeds the provider
// failure threshold. NotFound is a data-absence signal, not a health
// signal; AuthFailed bypasses counting because the provider becomes
// unusable outright.
func (k ErrorKind) CountsTowardFailure() bool {
	switch k {
	case KindRateLimitExceeded, KindUpstreamError, KindTimeout, KindMalformed:
		return true
	}
	return false
}

// SurfacedImmediately reports whether an error kind propagates to the
// caller without attempting fallback providers.
func (k ErrorKind) SurfacedImmediately() bool {
	return k == KindNotFound || k == KindAuthFailed
}
