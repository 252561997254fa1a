// Package memory provides an in-memory archive Store for testing and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pro004/tempmail/archive"
)

// Store implements archive.Store with in-memory storage.
// Thread-safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	messages  map[string]map[string]archive.Message // address -> id -> message
	connected int32
}

// Compile-time check
var _ archive.Store = (*Store)(nil)

// New creates a new in-memory archive store.
func New() *Store {
	return &Store{messages: make(map[string]map[string]archive.Message)}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return archive.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return archive.ErrNotConnected
	}
	return nil
}

// Save stores or updates a message.
func (s *Store) Save(ctx context.Context, msg archive.Message) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.messages[msg.Address]
	if !ok {
		byID = make(map[string]archive.Message)
		s.messages[msg.Address] = byID
	}
	if existing, ok := byID[msg.ID]; ok {
		// A summary-only save must not wipe previously archived content.
		if msg.Text == "" && existing.Text != "" {
			msg.Text = existing.Text
		}
		if msg.HTML == "" && existing.HTML != "" {
			msg.HTML = existing.HTML
		}
		msg.IsRead = msg.IsRead || existing.IsRead
	}
	byID[msg.ID] = msg
	return nil
}

// Get returns one archived message.
func (s *Store) Get(ctx context.Context, address, messageID string) (*archive.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[address][messageID]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return &msg, nil
}

// List returns all archived messages for an address, newest first.
func (s *Store) List(ctx context.Context, address string) ([]archive.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.messages[address]
	out := make([]archive.Message, 0, len(byID))
	for _, msg := range byID {
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out, nil
}

// MarkRead flags a message as read.
func (s *Store) MarkRead(ctx context.Context, address, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.messages[address][messageID]; ok {
		msg.IsRead = true
		s.messages[address][messageID] = msg
	}
	return nil
}

// Delete removes one message.
func (s *Store) Delete(ctx context.Context, address, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages[address], messageID)
	return nil
}

// Purge removes every message archived for an address.
func (s *Store) Purge(ctx context.Context, address string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, address)
	return nil
}
