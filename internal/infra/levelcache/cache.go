// Package levelcache holds the read-through logic shared by the question bank
// caches: one load per level at a time, non-empty banks only, expirations
// spread by up to a tenth of the TTL.
package levelcache

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"placement-runner/internal/domain"
)

// Loader fetches a level's bank from its source of truth.
type Loader interface {
	LoadLevel(ctx context.Context, level domain.Level) ([]domain.BankQuestion, error)
}

// Store is where a Cache keeps banks between loads. Keep is best effort.
type Store interface {
	Lookup(ctx context.Context, level domain.Level) ([]domain.BankQuestion, bool)
	Keep(ctx context.Context, level domain.Level, qs []domain.BankQuestion, ttl time.Duration)
}

type Cache struct {
	store  Store
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func New(store Store, loader Loader, ttl time.Duration) *Cache {
	return &Cache{
		store:  store,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Cache) GetLevel(ctx context.Context, level domain.Level) ([]domain.BankQuestion, error) {
	if qs, ok := c.store.Lookup(ctx, level); ok {
		return qs, nil
	}
	v, err, _ := c.sf.Do(string(level), func() (interface{}, error) {
		if qs, ok := c.store.Lookup(ctx, level); ok {
			return qs, nil
		}
		qs, err := c.loader.LoadLevel(ctx, level)
		if err != nil {
			return nil, err
		}
		if len(qs) > 0 {
			c.store.Keep(ctx, level, qs, c.expiry())
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.BankQuestion), nil
}

// expiry returns the TTL plus jitter; zero means the store keeps banks forever.
func (c *Cache) expiry() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(int64(c.ttl)/10+1))
}
