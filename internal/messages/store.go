// Package messages holds the append-only chat log for each session.
package messages

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// Store is an append-only, per-session ordered log of chat turns.
// There is no update or delete of individual messages.
type Store interface {
	// Create registers an empty log for sessionID. Creating an existing
	// session is a no-op.
	Create(sessionID string) error
	// Append stores msg at position len(log) and returns its id. The store
	// assigns ID (when empty), SessionID, Seq and CreatedAt (when zero).
	Append(sessionID string, msg domain.Message) (string, error)
	// List returns a snapshot of the session's messages in append order.
	List(sessionID string) ([]domain.Message, error)
}

// MemoryStore keeps logs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]domain.Message
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[string][]domain.Message),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("creating log: %w", domain.ErrInvalidSession)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[sessionID]; !ok {
		s.logs[sessionID] = nil
	}
	return nil
}

func (s *MemoryStore) Append(sessionID string, msg domain.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logs[sessionID]
	if !ok {
		return "", fmt.Errorf("appending to %q: %w", sessionID, domain.ErrInvalidSession)
	}

	msg = Stamp(msg, sessionID, len(log), s.now)
	s.logs[sessionID] = append(log, msg)
	return msg.ID, nil
}

func (s *MemoryStore) List(sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[sessionID]
	if !ok {
		return nil, fmt.Errorf("listing %q: %w", sessionID, domain.ErrInvalidSession)
	}
	out := make([]domain.Message, len(log))
	copy(out, log)
	return out, nil
}

// Stamp fills the store-owned fields of msg. Shared by Store implementations
// so they agree on id and timestamp assignment.
func Stamp(msg domain.Message, sessionID string, seq int, now func() time.Time) domain.Message {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now().UTC()
	}
	msg.SessionID = sessionID
	msg.Seq = seq
	if len(msg.Sources) > 0 {
		sources := make([]domain.Citation, len(msg.Sources))
		copy(sources, msg.Sources)
		msg.Sources = sources
	}
	return msg
}
