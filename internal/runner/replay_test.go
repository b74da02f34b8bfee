package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"placement-runner/internal/domain"
)

func TestReplayLimiterCapsAtMax(t *testing.T) {
	ctx := context.Background()
	r := NewReplayLimiter(newMapStore(), domain.Level2, 1, 2)

	for i := 1; i <= 2; i++ {
		n, err := r.RecordPlay(ctx)
		if err != nil || n != i {
			t.Fatalf("play %d: got n=%d err=%v", i, n, err)
		}
		r.PlaybackEnded()
	}
	if r.CanPlay(ctx) {
		t.Fatalf("expected no plays left after max")
	}

	n, err := r.RecordPlay(ctx)
	if !errors.Is(err, ErrReplayLimitReached) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if n != 2 || r.Count(ctx) != 2 {
		t.Fatalf("count moved past max: n=%d count=%d", n, r.Count(ctx))
	}
}

func TestReplayLimiterIgnoresRetriggerWhilePlaying(t *testing.T) {
	ctx := context.Background()
	r := NewReplayLimiter(newMapStore(), domain.Level2, 1, 2)

	if _, err := r.RecordPlay(ctx); err != nil {
		t.Fatalf("first play: %v", err)
	}
	for i := 0; i < 5; i++ {
		n, err := r.RecordPlay(ctx)
		if err != nil || n != 1 {
			t.Fatalf("retrigger %d: got n=%d err=%v", i, n, err)
		}
	}
	r.PlaybackEnded()
	if n, _ := r.RecordPlay(ctx); n != 2 {
		t.Fatalf("expected second genuine play to count, got %d", n)
	}
}

func TestReplayLimiterSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	first := NewReplayLimiter(store, domain.Level2, 3, 2)
	if _, err := first.RecordPlay(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}

	reloaded := NewReplayLimiter(store, domain.Level2, 3, 2)
	if got := reloaded.Count(ctx); got != 1 {
		t.Fatalf("expected persisted count 1, got %d", got)
	}

	other := NewReplayLimiter(store, domain.Level3, 3, 2)
	if got := other.Count(ctx); got != 0 {
		t.Fatalf("expected independent count per level, got %d", got)
	}
}

func TestReplayLimiterCorruptValueIsZero(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	_ = store.Set(ctx, replayKey(domain.Level2, 0), "many")

	r := NewReplayLimiter(store, domain.Level2, 0, 2)
	if got := r.Count(ctx); got != 0 {
		t.Fatalf("expected corrupt count to read as zero, got %d", got)
	}
	if n, err := r.RecordPlay(ctx); err != nil || n != 1 {
		t.Fatalf("expected play to recover, got n=%d err=%v", n, err)
	}
}

func TestReplayLimiterWriteFailureDoesNotCount(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.failSet = true

	r := NewReplayLimiter(store, domain.Level2, 0, 2)
	if _, err := r.RecordPlay(ctx); err == nil {
		t.Fatalf("expected write failure")
	}
	if r.Playing() {
		t.Fatalf("failed play must not mark audio as playing")
	}
}

func TestReplayLimiterSharedDeviceCannotOverspend(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	_ = store.Set(ctx, replayKey(domain.Level2, 0), "1")

	// Both connections read the count before either records its play.
	var read sync.WaitGroup
	read.Add(2)
	store.afterGet = func() {
		read.Done()
		read.Wait()
	}

	oldConn := NewReplayLimiter(store, domain.Level2, 0, 2)
	newConn := NewReplayLimiter(store, domain.Level2, 0, 2)
	errs := make(chan error, 2)
	for _, r := range []*ReplayLimiter{oldConn, newConn} {
		go func(r *ReplayLimiter) {
			_, err := r.RecordPlay(ctx)
			errs <- err
		}(r)
	}

	var granted, refused int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			granted++
		case errors.Is(err, ErrReplayLimitReached):
			refused++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if granted != 1 || refused != 1 {
		t.Fatalf("expected one play granted and one refused, got %d/%d", granted, refused)
	}
	if oldConn.Playing() == newConn.Playing() {
		t.Fatalf("only the granted limiter may be playing")
	}
}
