package memory

import (
	"context"
	"sync"
	"time"

	"placement-runner/internal/domain"
	"placement-runner/internal/infra/levelcache"
)

// QuestionLoader fetches a level's questions from a backing store.
type QuestionLoader = levelcache.Loader

// QuestionRepository keeps level banks in process memory in front of a loader.
type QuestionRepository struct {
	*levelcache.Cache
	banks *bankMap
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	banks := &bankMap{clock: time.Now, entries: make(map[domain.Level]bankEntry)}
	return &QuestionRepository{
		Cache: levelcache.New(banks, loader, ttl),
		banks: banks,
	}
}

type bankEntry struct {
	questions []domain.BankQuestion
	expiresAt time.Time // zero never expires
}

type bankMap struct {
	clock func() time.Time

	mu      sync.RWMutex
	entries map[domain.Level]bankEntry
}

func (m *bankMap) Lookup(_ context.Context, level domain.Level) ([]domain.BankQuestion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[level]
	if !ok || (!e.expiresAt.IsZero() && !e.expiresAt.After(m.clock())) {
		return nil, false
	}
	return e.questions, true
}

func (m *bankMap) Keep(_ context.Context, level domain.Level, qs []domain.BankQuestion, ttl time.Duration) {
	e := bankEntry{questions: qs}
	if ttl > 0 {
		e.expiresAt = m.clock().Add(ttl)
	}
	m.mu.Lock()
	m.entries[level] = e
	m.mu.Unlock()
}

// StaticQuestionBank serves a fixed map of levels. A level missing from the
// map has no questions.
type StaticQuestionBank struct {
	levels map[domain.Level][]domain.BankQuestion
}

func NewStaticQuestionBank(levels map[domain.Level][]domain.BankQuestion) *StaticQuestionBank {
	return &StaticQuestionBank{levels: levels}
}

func (b *StaticQuestionBank) LoadLevel(_ context.Context, level domain.Level) ([]domain.BankQuestion, error) {
	return b.levels[level], nil
}
