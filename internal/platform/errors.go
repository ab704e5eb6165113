package platform

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned before any network I/O when no API key is set.
var ErrNotConfigured = errors.New("voice platform API key not configured")

// AuthError indicates the remote rejected our credential (HTTP 401).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return "voice platform auth failed: " + e.Message
	}
	return "voice platform auth failed"
}

// NotFoundError indicates a missing remote resource (HTTP 404).
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Path)
}

// APIError carries any other >=400 remote response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice platform API error (%d): %s", e.Status, e.Message)
}

// ConnectivityError wraps transport-level failures (DNS, refused, timeout).
// The client performs no automatic retry; retrying is the caller's call since
// remote writes are not proven idempotent.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return "failed to connect to voice platform API: " + e.Err.Error()
}

func (e *ConnectivityError) Unwrap() error { return e.Err }
