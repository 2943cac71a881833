package auth

import (
	"errors"
	"fmt"
)

// ErrMissingCapability is matched by MissingCapabilityError through errors.Is.
var ErrMissingCapability = errors.New("renewal secret not configured")

// ValidationError reports malformed constructor input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MissingCapabilityError is reported (never returned) when a slot is asked to
// renew without a renewal secret.
type MissingCapabilityError struct {
	Kind Kind
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("%s token cannot be renewed: %v", e.Kind, ErrMissingCapability)
}

func (e *MissingCapabilityError) Unwrap() error {
	return ErrMissingCapability
}

// TransportError wraps a failed call to the token endpoint. StatusCode is zero
// when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
