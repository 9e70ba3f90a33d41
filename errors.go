package aquapoll

import "github.com/jpalmerr/aquapoll/internal/api"

// Error kind predicates. The internal client tags every failure with a
// kind; these helpers let SDK consumers branch on it without depending on
// internal packages.

// IsValidationError reports whether err was caused by invalid input. The
// request never reached the device.
func IsValidationError(err error) bool {
	return api.IsKind(err, api.KindValidation)
}

// IsTransportError reports whether err was a network-level failure
// (connection refused, timeout, DNS). Transport errors are retried before
// being surfaced.
func IsTransportError(err error) bool {
	return api.IsKind(err, api.KindTransport)
}

// IsProtocolError reports whether the device answered with an error status
// or an unparseable body.
func IsProtocolError(err error) bool {
	return api.IsKind(err, api.KindProtocol)
}

// IsCircuitOpenError reports whether the request was rejected immediately
// because the circuit breaker is open.
func IsCircuitOpenError(err error) bool {
	return api.IsKind(err, api.KindCircuitOpen)
}

// IsRateLimitedError reports whether the request was rejected by the rate
// limiter.
func IsRateLimitedError(err error) bool {
	return api.IsKind(err, api.KindRateLimited)
}
