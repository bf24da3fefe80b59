package carrier

import (
	"errors"
	"fmt"
)

var ErrMissingCredentials = errors.New("carrier: credentials are not configured")

// AuthError reports a rejected credential exchange. It is fatal for the
// current sync attempt but safe to retry once credentials are fixed.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("carrier: authentication failed: %s (status %d)", e.Message, e.StatusCode)
}

// APIError carries the carrier's structured error response verbatim. The
// client never retries on it; retry policy belongs to the orchestrator.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("carrier: %s (status %d)", e.Message, e.StatusCode)
}

// AWBError means the carrier accepted the request but could not assign a
// courier (serviceability gap). Terminal for the attempt, independently
// retriable later.
type AWBError struct {
	Message string
}

func (e *AWBError) Error() string {
	return fmt.Sprintf("carrier: waybill assignment failed: %s", e.Message)
}
