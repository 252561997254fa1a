// Package memory provides the in-memory Directory implementation.
// Sessions are process-local and do not survive restarts.
package memory

import (
	"sync"
	"time"

	"github.com/pro004/tempmail/directory"
)

// Directory implements directory.Directory with a mutex-guarded map.
// Safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	sessions map[string]directory.Session
	ttl      time.Duration
}

// Compile-time check
var _ directory.Directory = (*Directory)(nil)

// New creates an in-memory directory whose sessions expire once their
// age exceeds ttl.
func New(ttl time.Duration) (*Directory, error) {
	if ttl <= 0 {
		return nil, directory.ErrInvalidTTL
	}
	return &Directory{
		sessions: make(map[string]directory.Session),
		ttl:      ttl,
	}, nil
}

// TTL returns the configured time-to-live.
func (d *Directory) TTL() time.Duration {
	return d.ttl
}

// Put stores or overwrites the owner's session.
func (d *Directory) Put(ownerID string, sess directory.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[ownerID] = sess
}

// Get returns the owner's session unless it is missing or expired.
// Expired-but-unswept entries are reported absent.
func (d *Directory) Get(ownerID string, now time.Time) (directory.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sess, ok := d.sessions[ownerID]
	if !ok || d.expired(sess, now) {
		return directory.Session{}, false
	}
	return sess, true
}

// Remove deletes the owner's session. Idempotent.
func (d *Directory) Remove(ownerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, ownerID)
}

// Sweep removes every expired entry and returns the count removed.
func (d *Directory) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for ownerID, sess := range d.sessions {
		if d.expired(sess, now) {
			delete(d.sessions, ownerID)
			removed++
		}
	}
	return removed
}

// Len returns the number of physically present entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// expired reports whether sess has outlived the TTL at now.
// Age exactly equal to the TTL is still valid.
func (d *Directory) expired(sess directory.Session, now time.Time) bool {
	return sess.Age(now) > d.ttl
}
