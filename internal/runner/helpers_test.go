package runner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"placement-runner/internal/domain"
)

type mapStore struct {
	mu      sync.Mutex
	data    map[string]string
	clears  int
	failGet bool
	failSet bool

	// afterGet, when set, runs after every Get with the lock released.
	afterGet func()
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

var errStoreDown = errors.New("store down")

func (s *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	if s.failGet {
		s.mu.Unlock()
		return "", false, errStoreDown
	}
	v, ok := s.data[key]
	hook := s.afterGet
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errStoreDown
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return false, errStoreDown
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value
	return true, nil
}

func (s *mapStore) Incr(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return 0, errStoreDown
	}
	n := 0
	if raw, ok := s.data[key]; ok {
		var err error
		if n, err = strconv.Atoi(raw); err != nil {
			return 0, err
		}
	}
	n++
	s.data[key] = strconv.Itoa(n)
	return n, nil
}

func (s *mapStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	s.clears++
	return nil
}

func (s *mapStore) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeBackend serves scripted sessions and records the answers it receives.
type fakeBackend struct {
	mu        sync.Mutex
	session   *domain.Session
	startErr  error
	submitErr error
	clearErr  error
	answers   []domain.Answer
	starts    int
	clears    int

	// onSubmit, when set, computes the next session from the answer.
	onSubmit func(s *domain.Session, a domain.Answer) *domain.Session
	// submitted is signalled after every SubmitAnswer call.
	submitted chan domain.Answer
}

func newFakeBackend(s *domain.Session) *fakeBackend {
	return &fakeBackend{session: s, submitted: make(chan domain.Answer, 16)}
}

func (b *fakeBackend) StartOrResume(_ context.Context, _ domain.Identity) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.startErr != nil {
		return nil, b.startErr
	}
	return b.session.Clone(), nil
}

func (b *fakeBackend) SubmitAnswer(ctx context.Context, _ string, a domain.Answer) (*domain.Session, error) {
	b.mu.Lock()
	b.answers = append(b.answers, a)
	err := b.submitErr
	if err == nil && b.onSubmit != nil {
		b.session = b.onSubmit(b.session.Clone(), a)
	}
	out := b.session.Clone()
	b.mu.Unlock()

	select {
	case b.submitted <- a:
	default:
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *fakeBackend) ClearTransition(_ context.Context, _ string) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	if b.clearErr != nil {
		return nil, b.clearErr
	}
	if b.session.TransitionRequested {
		b.session.TransitionRequested = false
		b.session.CurrentLevel = b.session.NextLevel
		b.session.NextLevel = ""
		b.session.CurrentIndex = 0
	}
	return b.session.Clone(), nil
}

func (b *fakeBackend) Existing(_ context.Context, id string) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil || b.session.ID != id {
		return nil, domain.ErrSessionNotFound
	}
	return b.session.Clone(), nil
}

func (b *fakeBackend) setSession(s *domain.Session) {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
}

func (b *fakeBackend) recorded() []domain.Answer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Answer(nil), b.answers...)
}

var sara = domain.Identity{Name: "Sara", Email: "s@x.com", Phone: "+201234567890", Country: "Egypt"}

func timedQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{Index: i, Prompt: "Choose the correct form", Options: []string{"is", "are", "be"}}
	}
	return qs
}

func sampleSession() *domain.Session {
	return &domain.Session{
		ID:           "sess-1",
		Identity:     sara,
		CurrentLevel: domain.LevelStarter,
		Questions:    timedQuestions(3),
	}
}

// advanceIndex moves to the next question of the level.
func advanceIndex(s *domain.Session, _ domain.Answer) *domain.Session {
	s.CurrentIndex++
	return s
}
