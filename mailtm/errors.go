package mailtm

import (
	"errors"
	"fmt"
)

// Sentinel errors for the mailtm package.
// Use errors.Is() to check for these errors.
var (
	// ErrNotFound is returned when the remote service reports that the
	// requested message or account does not exist.
	ErrNotFound = errors.New("mailtm: not found")

	// ErrUnavailable is returned for network errors, timeouts, and
	// unexpected status codes from the remote service.
	ErrUnavailable = errors.New("mailtm: service unavailable")

	// ErrNoDomains is returned when the remote service has no active
	// domain to build an address from.
	ErrNoDomains = errors.New("mailtm: no active domains")
)

// StatusError reports an unexpected HTTP status from the remote service.
// It unwraps to ErrNotFound for 404 responses and ErrUnavailable for
// everything else, so callers can classify without looking at the code.
type StatusError struct {
	// Op is the logical operation that failed (e.g. "create account").
	Op string
	// StatusCode is the HTTP status returned by the service.
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mailtm: %s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return ErrUnavailable
}

// IsNotFound reports whether err means the target is gone rather than
// the service being down.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err is a transient remote failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
