package runner

import (
	"context"
	"fmt"
	"time"

	"placement-runner/internal/domain"
)

// SessionBackend is the service that owns sessions, scoring and leveling.
type SessionBackend interface {
	StartOrResume(ctx context.Context, identity domain.Identity) (*domain.Session, error)
	SubmitAnswer(ctx context.Context, sessionID string, answer domain.Answer) (*domain.Session, error)
	ClearTransition(ctx context.Context, sessionID string) (*domain.Session, error)
	Existing(ctx context.Context, sessionID string) (*domain.Session, error)
}

// AttemptStore is the device-scoped key-value store for timer and replay records.
// Incr adds one to an integer record, starting from zero, and fails on a
// non-integer value. Clear wipes every record of the device in one batch.
type AttemptStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Incr(ctx context.Context, key string) (int, error)
	Clear(ctx context.Context) error
}

// Settings tunes the per-question timing and audio limits.
type Settings struct {
	QuestionWindow time.Duration
	TickInterval   time.Duration
	MaxReplays     int
}

// DefaultSettings returns a 30s window polled every 250ms with two audio plays.
func DefaultSettings() Settings {
	return Settings{
		QuestionWindow: 30 * time.Second,
		TickInterval:   250 * time.Millisecond,
		MaxReplays:     2,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.QuestionWindow <= 0 {
		s.QuestionWindow = def.QuestionWindow
	}
	if s.TickInterval <= 0 {
		s.TickInterval = def.TickInterval
	}
	if s.MaxReplays <= 0 {
		s.MaxReplays = def.MaxReplays
	}
	return s
}

func timerKey(level domain.Level, index int) string {
	return fmt.Sprintf("timer:%s:%d", level, index)
}

func replayKey(level domain.Level, index int) string {
	return fmt.Sprintf("replay:%s:%d", level, index)
}
