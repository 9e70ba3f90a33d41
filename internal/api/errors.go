package api

import (
	"errors"
	"fmt"
)

// Kind classifies an API failure so callers can decide whether retrying,
// surfacing, or failing fast is appropriate.
type Kind string

const (
	// KindTransport covers connection failures and timeouts. Retried up to
	// the client's retry budget with capped exponential backoff.
	KindTransport Kind = "transport"

	// KindProtocol covers HTTP status >= 400 and malformed JSON bodies.
	KindProtocol Kind = "protocol"

	// KindValidation covers bad hostnames, device keys, template fields,
	// and malformed parameters. Never retried.
	KindValidation Kind = "validation"

	// KindCircuitOpen means the circuit breaker rejected the call without
	// attempting the network.
	KindCircuitOpen Kind = "circuit_open"

	// KindRateLimited means the rate limiter refused admission. The request
	// pipeline treats limiter timeouts as advisory, so this kind only
	// surfaces from explicit admission checks.
	KindRateLimited Kind = "rate_limited"
)

// Error is the tagged error type returned by every client operation.
//
// It carries enough context (endpoint, status code, attempt number) for a
// caller to log the failure or decide on a retry without parsing message
// strings.
type Error struct {
	// Kind tags the failure class.
	Kind Kind

	// Endpoint is the device API path the request targeted.
	Endpoint string

	// StatusCode is the HTTP status, when one was received.
	StatusCode int

	// Attempt is the 1-based attempt number that produced the failure.
	Attempt int

	// Message is a short human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("api %s error", e.Kind)
	if e.Endpoint != "" {
		msg += " " + e.Endpoint
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an [*Error] of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// Retryable reports whether err is worth retrying at the transport level.
// Only transport failures qualify; protocol and validation failures would
// fail identically on a retry.
func Retryable(err error) bool {
	return IsKind(err, KindTransport)
}
