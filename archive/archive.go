// Package archive defines local storage for messages fetched from the
// remote service.
//
// The archive is a read-through copy keyed by (address, message ID):
// listings and fetches deposit what they saw, views are served from the
// archive when possible, and deleting a message or an address purges
// the matching rows. It stores messages only — session bindings live in
// the directory and are never persisted.
package archive

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the archive package.
var (
	// ErrNotFound is returned when a message is not in the archive.
	ErrNotFound = errors.New("archive: not found")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("archive: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("archive: already connected")
)

// Message is one archived message. Summary-only rows have empty Text
// and HTML; a later full fetch upgrades them in place.
type Message struct {
	ID              string
	Address         string
	From            string
	To              string
	Subject         string
	Intro           string
	Text            string
	HTML            string
	AttachmentCount int
	IsRead          bool
	ReceivedAt      time.Time
}

// Store persists archived messages.
type Store interface {
	// Connect prepares the backend (schema, connectivity checks).
	Connect(ctx context.Context) error
	// Close releases the backend. Closing a store that was never
	// connected is a no-op.
	Close(ctx context.Context) error

	// Save stores or updates a message for the given address. A save
	// with content never downgrades an existing row to summary-only.
	Save(ctx context.Context, msg Message) error
	// Get returns one archived message, or ErrNotFound.
	Get(ctx context.Context, address, messageID string) (*Message, error)
	// List returns all archived messages for an address, newest first.
	List(ctx context.Context, address string) ([]Message, error)
	// MarkRead flags a message as read. Missing messages are a no-op.
	MarkRead(ctx context.Context, address, messageID string) error
	// Delete removes one message. Missing messages are a no-op.
	Delete(ctx context.Context, address, messageID string) error
	// Purge removes every message archived for an address.
	Purge(ctx context.Context, address string) error
}
