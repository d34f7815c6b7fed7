package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestProviderError_Error(t *testing.T) {
	err := NewProviderError(KindUpstreamError, "alpha", "bad gateway", fmt.Errorf("status 502"))
	want := "[UPSTREAM_ERROR] alpha: bad gateway: status 502"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestProviderError_IsMatchesByKind(t *testing.T) {
	err := NewProviderError(KindNotFound, "alpha", "no such symbol", nil)

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is to match by kind")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("expected errors.Is to not match a different kind")
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewProviderError(KindTimeout, "beta", "dial failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestErrorKind_CountsTowardFailure(t *testing.T) {
	tests := []struct {
		kind   ErrorKind
		counts bool
	}{
		{KindRateLimitExceeded, true},
		{KindUpstreamError, true},
		{KindTimeout, true},
		{KindMalformed, true},
		{KindNotFound, false},
		{KindAuthFailed, false},
		{KindAllUnavailable, false},
	}

	for _, tc := range tests {
		if got := tc.kind.CountsTowardFailure(); got != tc.counts {
			t.Errorf("CountsTowardFailure(%s) = %v, want %v", tc.kind, got, tc.counts)
		}
	}
}

func TestErrorKind_SurfacedImmediately(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		immediate bool
	}{
		{KindNotFound, true},
		{KindAuthFailed, true},
		{KindUpstreamError, false},
		{KindRateLimitExceeded, false},
		{KindTimeout, false},
	}

	for _, tc := range tests {
		if got := tc.kind.SurfacedImmediately(); got != tc.immediate {
			t.Errorf("SurfacedImmediately(%s) = %v, want %v", tc.kind, got, tc.immediate)
		}
	}
}

func TestErrKind(t *testing.T) {
	if got := ErrKind(NewProviderError(KindMalformed, "alpha", "truncated body", nil)); got != KindMalformed {
		t.Errorf("ErrKind = %s, want %s", got, KindMalformed)
	}
	if got := ErrKind(fmt.Errorf("plain")); got != "" {
		t.Errorf("ErrKind on plain error = %q, want empty", got)
	}
}
