package services

import (
	"fmt"
	"time"
)

type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// RateLimitError means the client should back off for RetryAfter.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Message }

// MisconfiguredError is an operator problem (missing or rejected credentials).
// It is never reported to clients as their fault.
type MisconfiguredError struct {
	Label   string
	Message string
	Err     error
}

func (e *MisconfiguredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Label, e.Err)
	}
	return e.Label
}

func (e *MisconfiguredError) Unwrap() error { return e.Err }

type UpstreamKind int

const (
	UpstreamFailed UpstreamKind = iota
	UpstreamInvalidResponse
)

// UpstreamError is a failure talking to the completion provider or the RPC node.
// StatusCode is the provider's HTTP status when one was received, 0 otherwise.
type UpstreamError struct {
	Provider   string
	Kind       UpstreamKind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Kind == UpstreamInvalidResponse {
		return fmt.Sprintf("%s: invalid upstream response: %v", e.Provider, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
