// ABOUTME: Error types returned by the vendor API client.
// ABOUTME: Auth failures are fatal to a sync; upstream failures affect one stream.
package oura

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned for malformed dates or a start after the end.
var ErrInvalidRange = errors.New("invalid date range")

// AuthError reports a missing or rejected bearer token.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return "oura auth: " + e.Message
	}
	return fmt.Sprintf("oura auth: HTTP %d: %s", e.StatusCode, e.Message)
}

// UpstreamError reports a vendor failure: a non-2xx response, a transport
// error (StatusCode 0), or an open circuit breaker (StatusCode 503).
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("oura %s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("oura %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// retryable reports whether err should count against the circuit breaker.
func retryable(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.StatusCode == 0 || ue.StatusCode == 429 || ue.StatusCode >= 500
}
