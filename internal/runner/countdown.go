package runner

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"placement-runner/internal/domain"
)

// Countdown tracks the deadline of one timed question. The deadline is anchored
// to the first time the question was seen on this device, so remounting or
// reconnecting never grants extra time.
type Countdown struct {
	window time.Duration
	now    func() time.Time
	start  time.Time

	mu      sync.Mutex
	expired bool
}

// NewCountdown loads or records the start timestamp of (level, index).
// Store failures and unparseable values fall back to "now" and never fail.
func NewCountdown(ctx context.Context, store AttemptStore, level domain.Level, index int, window time.Duration, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{
		window: window,
		now:    now,
		start:  anchorStart(ctx, store, timerKey(level, index), now),
	}
}

func anchorStart(ctx context.Context, store AttemptStore, key string, now func() time.Time) time.Time {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		log.Printf("timer %s: read failed, restarting: %v", key, err)
	}
	if ok {
		if start, perr := parseMillis(raw); perr == nil {
			return start
		}
		log.Printf("timer %s: corrupt value %q, restarting", key, raw)
		start := now()
		if err := store.Set(ctx, key, formatMillis(start)); err != nil {
			log.Printf("timer %s: write failed: %v", key, err)
		}
		return start
	}

	start := now()
	stored, err := store.SetIfAbsent(ctx, key, formatMillis(start))
	if err != nil {
		log.Printf("timer %s: write failed: %v", key, err)
		return start
	}
	if !stored {
		// Another mount of the same question won the race; use its anchor.
		if raw, ok, _ := store.Get(ctx, key); ok {
			if existing, perr := parseMillis(raw); perr == nil {
				return existing
			}
		}
	}
	return start
}

// StartedAt returns the anchored start time.
func (c *Countdown) StartedAt() time.Time {
	return c.start
}

// Remaining returns the whole seconds left, never below zero.
func (c *Countdown) Remaining() int {
	elapsed := int(c.now().Sub(c.start) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := int(c.window/time.Second) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether Poll has observed the deadline.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Poll recomputes the remaining time. expiredNow is true on exactly one call:
// the first one that sees the remaining time at zero.
func (c *Countdown) Poll() (remaining int, expiredNow bool) {
	remaining = c.Remaining()
	c.mu.Lock()
	defer c.mu.Unlock()
	if remaining == 0 && !c.expired {
		c.expired = true
		return remaining, true
	}
	return remaining, false
}

// Run polls every interval until ctx is done, reporting each tick to onTick.
// The first poll happens immediately so an already-elapsed deadline is seen at once.
func (c *Countdown) Run(ctx context.Context, interval time.Duration, onTick func(remaining int, expiredNow bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		remaining, expiredNow := c.Poll()
		onTick(remaining, expiredNow)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
