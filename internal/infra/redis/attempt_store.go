package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptStore keeps one device's timer and replay records in a single Redis hash:
//
//	HSET placement:attempt:{deviceID} {key} {value}
//
// so the whole attempt can be wiped with one DEL. The hash expires after ttl of
// inactivity, which bounds abandoned devices without touching live attempts.
type AttemptStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewAttemptStore(client *redis.Client, deviceID string, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client: client,
		key:    "placement:attempt:" + deviceID,
		ttl:    ttl,
	}
}

func (s *AttemptStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *AttemptStore) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, key, value)
	s.touch(ctx, pipe)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *AttemptStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	pipe := s.client.TxPipeline()
	set := pipe.HSetNX(ctx, s.key, key, value)
	s.touch(ctx, pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return set.Val(), nil
}

func (s *AttemptStore) Incr(ctx context.Context, key string) (int, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, s.key, key, 1)
	s.touch(ctx, pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *AttemptStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *AttemptStore) touch(ctx context.Context, pipe redis.Pipeliner) {
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
}

// AttemptStores builds AttemptStores that share one client.
type AttemptStores struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStores(client *redis.Client, ttl time.Duration) *AttemptStores {
	return &AttemptStores{client: client, ttl: ttl}
}

func (f *AttemptStores) ForDevice(deviceID string) *AttemptStore {
	return NewAttemptStore(f.client, deviceID, f.ttl)
}
