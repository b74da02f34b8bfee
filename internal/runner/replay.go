package runner

import (
	"context"
	"log"
	"strconv"
	"sync"

	"placement-runner/internal/domain"
)

// ReplayLimiter caps how many times a question's audio may be started.
// Counts live in the AttemptStore and only the attempt reset clears them.
type ReplayLimiter struct {
	store AttemptStore
	key   string
	max   int

	mu      sync.Mutex
	playing bool
}

func NewReplayLimiter(store AttemptStore, level domain.Level, index, max int) *ReplayLimiter {
	return &ReplayLimiter{
		store: store,
		key:   replayKey(level, index),
		max:   max,
	}
}

// Max returns the configured play limit.
func (r *ReplayLimiter) Max() int {
	return r.max
}

// Count returns the recorded plays; missing or corrupt values count as zero.
func (r *ReplayLimiter) Count(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(ctx)
}

// CanPlay reports whether another play is allowed.
func (r *ReplayLimiter) CanPlay(ctx context.Context) bool {
	return r.Count(ctx) < r.max
}

// Playing reports whether a recorded play has not ended yet.
func (r *ReplayLimiter) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// RecordPlay counts a new playback. Re-triggering while audio is still playing
// returns the current count without incrementing it. The increment happens in
// the store, so two runners on the same device cannot both take the last play.
func (r *ReplayLimiter) RecordPlay(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, corrupt := r.readLocked(ctx)
	if r.playing {
		return count, nil
	}
	if count >= r.max {
		return count, ErrReplayLimitReached
	}

	var n int
	var err error
	if corrupt {
		n, err = 1, r.store.Set(ctx, r.key, "1")
	} else {
		n, err = r.store.Incr(ctx, r.key)
	}
	if err != nil {
		return count, err
	}
	if n > r.max {
		return r.max, ErrReplayLimitReached
	}
	r.playing = true
	return n, nil
}

// PlaybackEnded marks the current playback as finished.
func (r *ReplayLimiter) PlaybackEnded() {
	r.mu.Lock()
	r.playing = false
	r.mu.Unlock()
}

func (r *ReplayLimiter) countLocked(ctx context.Context) int {
	n, _ := r.readLocked(ctx)
	return n
}

// readLocked returns the capped play count and whether the stored value was unusable.
func (r *ReplayLimiter) readLocked(ctx context.Context) (int, bool) {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		log.Printf("replay %s: read failed: %v", r.key, err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("replay %s: corrupt value %q, treating as zero", r.key, raw)
		return 0, true
	}
	if n > r.max {
		return r.max, false
	}
	return n, false
}
