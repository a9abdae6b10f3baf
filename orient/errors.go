package orient

import (
	"fmt"
	"strings"
)

// RESTError is an error response from an OrientDB REST endpoint.
//
// Transport-level failures (connection refused, reset) are normalized to
// code 503 so callers can treat node unavailability uniformly.
type RESTError struct {
	// Server is the base URL of the server that produced the error.
	Server string

	// Code is the HTTP status code, or 503 for transport failures.
	Code int

	// Message is the error content reported by the server.
	Message string

	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RESTError) Error() string {
	return fmt.Sprintf("stress: rest request to %s failed: HTTP %d %s", e.Server, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RESTError) Unwrap() error {
	return e.Cause
}

// Offline reports whether the error indicates the node is not yet ONLINE
// in the distributed configuration.
func (e *RESTError) Offline() bool {
	return strings.Contains(e.Message, "OOfflineNodeException")
}

// Unauthorized reports whether the error is an authentication failure.
// OrientDB briefly rejects credentials while a restarted node reloads its
// security config, so this is usually transient under disturbance.
func (e *RESTError) Unauthorized() bool {
	return e.Code == 401 || strings.Contains(e.Message, "401 Unauthorized")
}
