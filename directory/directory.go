// Package directory defines the authoritative in-process mapping from
// an owner identity to its currently active temporary-mailbox session.
//
// The directory enforces the single-active-address-per-owner invariant:
// storing a session for an owner replaces whatever was there before.
// Expiry is part of the read contract — Get treats entries older than
// the directory's TTL as absent even before a sweep physically removes
// them, so no caller ever observes an expired session.
package directory

import (
	"errors"
	"time"

	"github.com/pro004/tempmail/mailtm"
)

// Sentinel errors for the directory package.
var (
	// ErrInvalidTTL is returned when a directory is configured with a
	// non-positive TTL.
	ErrInvalidTTL = errors.New("directory: ttl must be positive")
)

// Session binds one owner to one active disposable address.
// The address and credentials are immutable for the session's lifetime;
// replacing the address means storing a new session with a new
// CreatedAt.
type Session struct {
	// OwnerID identifies the user this session belongs to.
	OwnerID string
	// Address is the disposable address bound to the owner.
	Address string
	// Account holds the remote credentials needed to operate on the
	// address (account ID, bearer token, password).
	Account mailtm.Account
	// CreatedAt is the (re)creation time, used for expiry.
	CreatedAt time.Time
}

// Age returns how old the session is at now.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Directory is the owner-to-session mapping.
//
// Implementations must be safe for concurrent use, and the sweep must
// use the same synchronization as user-triggered writes. All operations
// are synchronous and non-blocking.
type Directory interface {
	// Put stores or overwrites the owner's session. It never fails.
	Put(ownerID string, sess Session)
	// Get returns the owner's session if one exists and has not
	// outlived the TTL at now. A session whose age is exactly the TTL
	// is still valid; one instant older is not.
	Get(ownerID string, now time.Time) (Session, bool)
	// Remove deletes the owner's session if present. Removing an
	// absent owner is a no-op.
	Remove(ownerID string)
	// Sweep removes every expired entry and returns how many it
	// removed. The count is for observability only.
	Sweep(now time.Time) int
	// Len returns the number of physically present entries, including
	// expired-but-unswept ones. Observability only.
	Len() int
}
