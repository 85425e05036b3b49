package discovery

import "fmt"

// ValidationError reports caller input rejected before any network activity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AuthReason distinguishes why a controller login failed.
type AuthReason int

const (
	// AuthUnreachable means neither login endpoint answered.
	AuthUnreachable AuthReason = iota
	// AuthRejected means a login endpoint answered with a non-success status.
	AuthRejected
)

// AuthenticationError is returned when controller login fails on both the
// HTTPS attempt and the plain-HTTP fallback.
type AuthenticationError struct {
	Reason AuthReason
	Status int   // HTTP status of the rejecting response, when Reason is AuthRejected.
	Err    error // last transport error, when Reason is AuthUnreachable.
}

func (e *AuthenticationError) Error() string {
	if e.Reason == AuthRejected {
		return fmt.Sprintf("controller rejected credentials (HTTP %d)", e.Status)
	}
	return "controller unreachable"
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
