package memory

import (
	"context"
	"encoding/json"
	"sync"

	"placement-runner/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Records are stored as copies so callers never share state with the store.
type SessionStore struct {
	mu      sync.RWMutex
	records map[string]domain.SessionRecord
	byEmail map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string]domain.SessionRecord),
		byEmail: make(map[string]string),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copyRecord(record)
}

func (s *SessionStore) FindByEmail(ctx context.Context, email string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Save(_ context.Context, record *domain.SessionRecord) error {
	cp, err := copyRecord(*record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[cp.Session.ID] = *cp
	s.byEmail[cp.Session.Identity.Email] = cp.Session.ID
	return nil
}

// copyRecord deep-copies through JSON, the same shape the Redis store persists.
func copyRecord(record domain.SessionRecord) (*domain.SessionRecord, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var out domain.SessionRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
