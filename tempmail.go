package tempmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"golang.org/x/sync/semaphore"

	"github.com/pro004/tempmail/archive"
	"github.com/pro004/tempmail/directory"
	dirmemory "github.com/pro004/tempmail/directory/memory"
	"github.com/pro004/tempmail/mailtm"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages disposable mailbox sessions (server-side).
// It owns the session directory, the background expiry sweeper, and
// the connection to the remote mail provider, and it creates per-owner
// session clients.
//
// Composed of:
//   - ServiceHealth: Health and state queries (IsConnected)
type Service interface {
	ServiceHealth

	// Connect establishes connections to backends and starts the
	// background expiry sweeper.
	Connect(ctx context.Context) error
	// Close stops the sweeper, waits for in-flight remote calls, and
	// closes all connections.
	Close(ctx context.Context) error
	// Client returns a session client for the given owner.
	// The returned client shares the service's connections.
	Client(ownerID string) Session
	// Sweep removes expired sessions immediately, without waiting for
	// the next background pass.
	Sweep(ctx context.Context) (*SweepResult, error)
	// Events returns per-service event instances for subscribing and publishing.
	// Each service has its own events bound to its own event bus, enabling
	// independent event routing and parallel testing.
	Events() *ServiceEvents
}

// SessionReader provides read access to an owner's session and inbox.
type SessionReader interface {
	// Active returns the owner's current address, or ErrNoActiveSession
	// when none is bound or the binding has expired.
	Active(ctx context.Context) (directory.Session, error)
	// Messages lists the inbox for the owner's address, newest first.
	Messages(ctx context.Context) ([]mailtm.MessageSummary, error)
	// Message fetches one message in full and marks it read.
	Message(ctx context.Context, messageID string) (mailtm.MessageDetail, error)
}

// SessionMutator provides mutation operations on an owner's session.
type SessionMutator interface {
	// Generate binds the owner to a fresh disposable address, replacing
	// any existing binding.
	Generate(ctx context.Context) (directory.Session, error)
	// DeleteMessage removes one message from the remote inbox.
	DeleteMessage(ctx context.Context, messageID string) error
	// DeleteAll destroys the remote account and clears the owner's
	// binding. The local binding is cleared even when the remote delete
	// fails; the remote error is still returned.
	DeleteAll(ctx context.Context) error
}

// Session provides disposable-mailbox functionality for one owner.
// This is the main interface for session operations.
//
// Composed of:
//   - SessionReader: Read operations (Active, Messages, Message)
//   - SessionMutator: Mutations (Generate, DeleteMessage, DeleteAll)
type Session interface {
	OwnerID() string
	SessionReader
	SessionMutator
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	dir    directory.Directory
	mail   mailtm.Client
	arch   archive.Store
	logger *slog.Logger
	opts   *options
	state  int32 // stateDisconnected, stateConnecting, or stateConnected
	otel   *otelInstrumentation

	remoteSem *semaphore.Weighted // Limits concurrent remote calls to prevent resource exhaustion
	eventBus  *event.Bus          // Event bus for publishing events
	events    *ServiceEvents      // Per-service event instances

	ownerLocks sync.Map // ownerID -> *sync.Mutex, serializes mutations per owner

	sweeping  int32 // guards against overlapping sweep passes
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewService creates a new tempmail service.
// Call Connect() to establish connections and start the expiry sweeper.
//
// A mail client is required. The session directory defaults to an
// in-memory directory built with the configured TTL; the archive is
// optional and, when absent, messages are served from the remote
// service only.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.mailClient == nil {
		return nil, ErrMailClientRequired
	}

	if o.directory == nil {
		dir, err := dirmemory.New(o.ttl)
		if err != nil {
			return nil, fmt.Errorf("init directory: %w", err)
		}
		o.directory = dir
	}

	// Initialize OTel instrumentation
	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		dir:       o.directory,
		mail:      o.mailClient,
		arch:      o.archive,
		logger:    o.logger,
		opts:      o,
		otel:      otelInstr,
		remoteSem: semaphore.NewWeighted(int64(o.maxConcurrentRemote)),
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to backends and starts the sweeper.
func (s *service) Connect(ctx context.Context) error {
	// Use three-state to prevent Client() from seeing partial initialization
	// stateDisconnected -> stateConnecting -> stateConnected
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		if atomic.LoadInt32(&s.state) == stateConnecting {
			return ErrAlreadyConnected // Connection in progress
		}
		return ErrAlreadyConnected
	}

	// Reset to disconnected on failure, set to connected on success
	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if s.arch != nil {
		if err := s.arch.Connect(ctx); err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
	}

	// Initialize event bus with appropriate transport
	if err := s.initEventBus(ctx); err != nil {
		if s.arch != nil {
			s.arch.Close(ctx)
		}
		return fmt.Errorf("init event bus: %w", err)
	}

	// Start the background expiry sweeper. It runs for the life of the
	// service and stops in Close.
	s.sweepStop = make(chan struct{})
	s.sweepDone = make(chan struct{})
	go s.runSweeper()

	success = true
	s.logger.Info("tempmail service connected",
		"sweep_interval", s.opts.sweepInterval,
		"ttl", s.opts.ttl)
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service.
// Each service creates its own bus with its own per-service events.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "tempmail"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	// Create and register per-service events (unique per service instance).
	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// Close stops the sweeper and closes connections to backends.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// Stop the sweeper and wait for the current pass, if any, to finish.
	close(s.sweepStop)
	<-s.sweepDone

	// Wait for in-flight remote calls to complete (graceful shutdown).
	// After setting state to disconnected, no new operations can start
	// because checkAccess fails. We acquire all semaphore slots to wait
	// for existing operations to finish.
	s.logger.Info("waiting for in-flight operations to complete...", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.remoteSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentRemote)); err != nil {
		// Context cancelled or deadline exceeded - log but continue shutdown
		s.logger.Warn("timeout waiting for in-flight operations, proceeding with shutdown",
			"error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.remoteSem.Release(int64(s.opts.maxConcurrentRemote))
		s.logger.Info("all in-flight operations completed")
	}

	// Close event bus only if using a real transport.
	// For noop transport, the bus doesn't hold resources.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if s.arch != nil {
		if err := s.arch.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Client returns a session client for the given owner.
func (s *service) Client(ownerID string) Session {
	return &ownerSession{
		ownerID:      ownerID,
		service:      s,
		validOwnerID: isValidOwnerID(ownerID),
	}
}
