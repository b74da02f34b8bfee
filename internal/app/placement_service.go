package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"placement-runner/internal/domain"
)

// SessionRepository abstracts where session records live (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	FindByEmail(ctx context.Context, email string) (*domain.SessionRecord, error)
	Save(ctx context.Context, record *domain.SessionRecord) error
}

// QuestionRepository loads the question bank of a level (from cache/backing store).
type QuestionRepository interface {
	GetLevel(ctx context.Context, level domain.Level) ([]domain.BankQuestion, error)
}

// DefaultPassRatio is the share of correct answers needed to move up a level.
const DefaultPassRatio = 0.6

// PlacementService is the session backing service: it hands out questions,
// scores answers and decides when a candidate moves to the next level.
type PlacementService struct {
	sessions  SessionRepository
	questions QuestionRepository
	passRatio float64
	now       func() time.Time

	mu sync.Mutex
}

func NewPlacementService(sessions SessionRepository, questions QuestionRepository, passRatio float64) *PlacementService {
	if passRatio <= 0 || passRatio > 1 {
		passRatio = DefaultPassRatio
	}
	return &PlacementService{
		sessions:  sessions,
		questions: questions,
		passRatio: passRatio,
		now:       time.Now,
	}
}

// NewPlacementServiceWithClock is test-only for deterministic timestamps.
func NewPlacementServiceWithClock(sessions SessionRepository, questions QuestionRepository, passRatio float64, now func() time.Time) *PlacementService {
	s := NewPlacementService(sessions, questions, passRatio)
	s.now = now
	return s
}

// StartOrResume returns the unfinished session of the identity, or starts a new one.
func (s *PlacementService) StartOrResume(ctx context.Context, identity domain.Identity) (*domain.Session, error) {
	identity = identity.Normalize()
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.sessions.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil && existing.Completed():
		return nil, domain.ErrAlreadyCompleted
	case err == nil:
		return s.view(ctx, existing)
	case !errors.Is(err, domain.ErrSessionNotFound):
		return nil, err
	}

	first := domain.Levels[0]
	if _, err := s.loadLevel(ctx, first); err != nil {
		return nil, err
	}
	now := s.now()
	record := &domain.SessionRecord{
		Session: domain.Session{
			ID:           uuid.NewString(),
			Identity:     identity,
			CurrentLevel: first,
			CreatedAt:    now,
		},
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.view(ctx, record)
}

// SubmitAnswer scores the answer to the current question and advances the session.
func (s *PlacementService) SubmitAnswer(ctx context.Context, sessionID string, answer domain.Answer) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if record.Completed() {
		return nil, domain.ErrAlreadyCompleted
	}
	if record.Session.TransitionRequested {
		return nil, domain.ErrTransitionPending
	}

	bank, err := s.loadLevel(ctx, record.Session.CurrentLevel)
	if err != nil {
		return nil, err
	}
	idx := record.Session.CurrentIndex
	if idx < 0 || idx >= len(bank) {
		return nil, fmt.Errorf("question %d of %s: %w", idx, record.Session.CurrentLevel, domain.ErrNoQuestions)
	}
	question := bank[idx]
	if !answer.Valid(len(question.Options)) {
		return nil, domain.ErrInvalidOption
	}

	record.Answers = append(record.Answers, answer)
	record.LevelAsked++
	record.TotalAsked++
	if answer != domain.NoAnswer && int(answer) == question.Correct {
		record.LevelCorrect++
		record.TotalCorrect++
	}

	if idx+1 < len(bank) {
		record.Session.CurrentIndex = idx + 1
	} else {
		s.finishLevel(ctx, record)
	}
	record.UpdatedAt = s.now()

	if err := s.sessions.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.view(ctx, record)
}

// ClearTransition moves the session onto its next level. It is a no-op when no transition is pending.
func (s *PlacementService) ClearTransition(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !record.Session.TransitionRequested {
		return s.view(ctx, record)
	}

	next := record.Session.NextLevel
	if _, err := s.loadLevel(ctx, next); err != nil {
		return nil, err
	}
	record.Session.CurrentLevel = next
	record.Session.CurrentIndex = 0
	record.Session.NextLevel = ""
	record.Session.TransitionRequested = false
	record.LevelAsked = 0
	record.LevelCorrect = 0
	record.UpdatedAt = s.now()

	if err := s.sessions.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.view(ctx, record)
}

// Existing returns the session with the given ID.
func (s *PlacementService) Existing(ctx context.Context, sessionID string) (*domain.Session, error) {
	record, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, record)
}

// finishLevel either raises the transition flag or writes the final results.
func (s *PlacementService) finishLevel(ctx context.Context, record *domain.SessionRecord) {
	level := record.Session.CurrentLevel
	passed := record.LevelAsked > 0 && float64(record.LevelCorrect)/float64(record.LevelAsked) >= s.passRatio
	if passed {
		record.HighestPassed = level
		if next, ok := level.Next(); ok {
			if qs, err := s.loadLevel(ctx, next); err == nil && len(qs) > 0 {
				record.Session.TransitionRequested = true
				record.Session.NextLevel = next
				return
			}
		}
	}

	final := record.HighestPassed
	if final == "" {
		final = domain.Levels[0]
	}
	record.Session.FinalResults = &domain.FinalResults{
		FinalLevel: final,
		Score:      percent(record.TotalCorrect, record.TotalAsked),
	}
}

func (s *PlacementService) loadLevel(ctx context.Context, level domain.Level) ([]domain.BankQuestion, error) {
	if level.Rank() < 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownLevel, level)
	}
	qs, err := s.questions.GetLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%s: %w", level, domain.ErrNoQuestions)
	}
	return qs, nil
}

// view builds the client-visible session, stripping answer keys.
func (s *PlacementService) view(ctx context.Context, record *domain.SessionRecord) (*domain.Session, error) {
	out := record.Session.Clone()
	bank, err := s.loadLevel(ctx, record.Session.CurrentLevel)
	if err != nil {
		return nil, err
	}
	out.Questions = make([]domain.Question, len(bank))
	for i, q := range bank {
		out.Questions[i] = domain.Question{
			Index:    i,
			Prompt:   q.Prompt,
			AudioURL: q.AudioURL,
			Options:  append([]string(nil), q.Options...),
		}
	}
	return out, nil
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}
