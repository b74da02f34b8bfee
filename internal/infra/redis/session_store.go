package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"placement-runner/internal/domain"
)

// SessionStore is a Redis implementation of app.SessionRepository.
// Records are stored as JSON with an email index pointing at the session ID:
//
//	SET placement:session:{id}          {record json}
//	SET placement:session-email:{email} {id}
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var record domain.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &record, nil
}

func (s *SessionStore) FindByEmail(ctx context.Context, email string) (*domain.SessionRecord, error) {
	id, err := s.client.Get(ctx, s.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Save(ctx context.Context, record *domain.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(record.Session.ID), data, s.ttl)
	pipe.Set(ctx, s.emailKey(record.Session.Identity.Email), record.Session.ID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) key(sessionID string) string {
	return "placement:session:" + sessionID
}

func (s *SessionStore) emailKey(email string) string {
	return "placement:session-email:" + email
}
