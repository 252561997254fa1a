package tempmail

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for session lifecycle events.
const (
	EventNameSessionCreated = "tempmail.session.created"
	EventNameSessionDeleted = "tempmail.session.deleted"
	EventNameSessionsSwept  = "tempmail.sessions.swept"
)

// SessionCreatedEvent is published when an owner is bound to a new
// disposable address.
type SessionCreatedEvent struct {
	OwnerID   string    `json:"owner_id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	// Replaced is true when the owner already had an active address;
	// the old remote account is orphaned, not cleaned up.
	Replaced        bool   `json:"replaced"`
	PreviousAddress string `json:"previous_address,omitempty"`
}

// SessionDeletedEvent is published when an owner explicitly deletes
// their address. Sweeper evictions publish SessionsSweptEvent instead.
type SessionDeletedEvent struct {
	OwnerID string `json:"owner_id"`
	Address string `json:"address"`
	// RemoteDeleted is false when the remote delete call failed; the
	// local binding is cleared either way.
	RemoteDeleted bool      `json:"remote_deleted"`
	DeletedAt     time.Time `json:"deleted_at"`
}

// SessionsSweptEvent is published after a sweep that removed at least
// one expired session.
type SessionsSweptEvent struct {
	Removed int       `json:"removed"`
	SweptAt time.Time `json:"swept_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().SessionCreated.Subscribe(ctx, handler)
//	svc.Events().SessionDeleted.Subscribe(ctx, handler)
//	svc.Events().SessionsSwept.Subscribe(ctx, handler)
type ServiceEvents struct {
	// SessionCreated is published when an owner gets a new address.
	SessionCreated event.Event[SessionCreatedEvent]

	// SessionDeleted is published when an owner deletes their address.
	SessionDeleted event.Event[SessionDeletedEvent]

	// SessionsSwept is published when the sweeper evicts expired sessions.
	SessionsSwept event.Event[SessionsSweptEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		SessionCreated: event.New[SessionCreatedEvent](namePrefix + "." + EventNameSessionCreated),
		SessionDeleted: event.New[SessionDeletedEvent](namePrefix + "." + EventNameSessionDeleted),
		SessionsSwept:  event.New[SessionsSweptEvent](namePrefix + "." + EventNameSessionsSwept),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.SessionCreated); err != nil {
		return fmt.Errorf("register SessionCreated: %w", err)
	}
	if err := event.Register(ctx, bus, events.SessionDeleted); err != nil {
		return fmt.Errorf("register SessionDeleted: %w", err)
	}
	if err := event.Register(ctx, bus, events.SessionsSwept); err != nil {
		return fmt.Errorf("register SessionsSwept: %w", err)
	}
	return nil
}
