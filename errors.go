package tempmail

import (
	"errors"
	"fmt"

	"github.com/pro004/tempmail/mailtm"
)

// Sentinel errors for the tempmail package.
// Use errors.Is() to check for these errors.
var (
	// ErrNoActiveSession is returned when an operation other than
	// Generate is attempted and the owner has no bound address (or the
	// binding has expired).
	ErrNoActiveSession = errors.New("tempmail: no active session")

	// ErrNotFound is returned when the remote service reports that the
	// target message or account is gone. Distinct from
	// ErrRemoteUnavailable so callers can tell "deleted" from "down".
	ErrNotFound = errors.New("tempmail: not found")

	// ErrRemoteUnavailable is returned for network errors, timeouts,
	// and unexpected responses from the remote mail service. The
	// package never retries on its own; retry policy belongs to the
	// caller.
	ErrRemoteUnavailable = errors.New("tempmail: remote service unavailable")

	// ErrInvalidMessageID is returned for empty or malformed message
	// identifiers, before any remote call is issued.
	ErrInvalidMessageID = errors.New("tempmail: invalid message id")

	// ErrInvalidOwnerID is returned when an owner ID contains invalid
	// characters.
	ErrInvalidOwnerID = errors.New("tempmail: invalid owner id")

	// ErrMailClientRequired is returned when no mail client is configured.
	ErrMailClientRequired = errors.New("tempmail: mail client is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("tempmail: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("tempmail: already connected")
)

// remoteError translates a mail client error into the package taxonomy.
// The original error stays in the chain, so errors.Is matches both the
// package sentinel and the mailtm sentinel.
func remoteError(op string, err error) error {
	if mailtm.IsNotFound(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}

// FailureCategory is the presenter-facing classification of a failed
// operation. Presenters choose user-facing language from the category
// alone, never from transport details.
type FailureCategory int

const (
	// CategoryUnknown is any error outside the taxonomy.
	CategoryUnknown FailureCategory = iota
	// CategoryNoActiveSession means the owner must generate an address first.
	CategoryNoActiveSession
	// CategoryRemoteUnavailable means a transient remote failure.
	CategoryRemoteUnavailable
	// CategoryNotFound means the target is gone, not that the service is down.
	CategoryNotFound
	// CategoryInvalidArgument means the request was malformed locally.
	CategoryInvalidArgument
)

// String returns the category name.
func (c FailureCategory) String() string {
	switch c {
	case CategoryNoActiveSession:
		return "no_active_session"
	case CategoryRemoteUnavailable:
		return "remote_unavailable"
	case CategoryNotFound:
		return "not_found"
	case CategoryInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Category classifies err into a FailureCategory.
func Category(err error) FailureCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrNoActiveSession):
		return CategoryNoActiveSession
	case errors.Is(err, ErrNotFound), errors.Is(err, mailtm.ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrInvalidMessageID), errors.Is(err, ErrInvalidOwnerID):
		return CategoryInvalidArgument
	case errors.Is(err, ErrRemoteUnavailable), errors.Is(err, mailtm.ErrUnavailable):
		return CategoryRemoteUnavailable
	default:
		return CategoryUnknown
	}
}

// IsNoActiveSession checks if the error means the owner has no bound address.
func IsNoActiveSession(err error) bool {
	return errors.Is(err, ErrNoActiveSession)
}

// EventPublishError is returned when event publishing fails but the
// operation itself succeeded. Only returned when WithEventErrorsFatal
// is set; otherwise publish failures go to the failure callback.
type EventPublishError struct {
	EventName string
	Err       error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("tempmail: event publish failed for %s: %v", e.EventName, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and
// returns details.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}
