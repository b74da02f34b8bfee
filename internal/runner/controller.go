package runner

import (
	"context"
	"fmt"
	"log"
	"sync"

	"placement-runner/internal/domain"
)

// Controller is the single owner of the runner stage. Children report signals
// (answer submitted, continue pressed) and the controller derives the stage
// from the latest session data through Reconcile.
type Controller struct {
	backend   SessionBackend
	bootstrap *Bootstrap

	mu                 sync.RWMutex
	stage              domain.Stage
	session            *domain.Session
	enteringTransition bool
	starting           bool
	err                error
}

func NewController(backend SessionBackend, store AttemptStore) *Controller {
	return &Controller{
		backend:   backend,
		bootstrap: NewBootstrap(backend, store),
		stage:     domain.StageWelcome,
	}
}

// Stage returns the current stage.
func (c *Controller) Stage() domain.Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

// Session returns a copy of the latest session data, or nil.
func (c *Controller) Session() *domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// EnteringTransition reports whether the transition screen is pending acknowledgement.
func (c *Controller) EnteringTransition() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enteringTransition
}

// Err returns the last start or continue failure, cleared by DismissError.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// DismissError clears the surfaced error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

// CurrentQuestion returns the level and question being presented while in the question stage.
func (c *Controller) CurrentQuestion() (domain.Level, domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stage != domain.StageQuestion {
		return "", domain.Question{}, false
	}
	q, ok := c.session.CurrentQuestion()
	if !ok {
		return "", domain.Question{}, false
	}
	return c.session.CurrentLevel, q, true
}

// Observe records new session data and recomputes the stage.
func (c *Controller) Observe(s *domain.Session) domain.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocked(s)
	return c.stage
}

func (c *Controller) observeLocked(s *domain.Session) {
	if s != nil {
		c.session = s.Clone()
	}
	next := Reconcile(c.stage, SignalsFrom(c.session))
	if next == c.stage {
		return
	}
	switch next {
	case domain.StageTransition:
		c.enteringTransition = true
	case domain.StageCompletion, domain.StageQuestion:
		c.enteringTransition = false
	}
	log.Printf("session %s: stage %s -> %s", c.sessionIDLocked(), c.stage, next)
	c.stage = next
}

// Start begins a new attempt. On failure the stage stays at welcome and the
// error is kept for display until dismissed or a retry succeeds.
func (c *Controller) Start(ctx context.Context, identity domain.Identity) error {
	c.mu.Lock()
	if c.stage != domain.StageWelcome {
		c.mu.Unlock()
		return ErrNotAtWelcome
	}
	if c.starting {
		c.mu.Unlock()
		return ErrStartInFlight
	}
	c.starting = true
	c.mu.Unlock()

	session, err := c.bootstrap.Start(ctx, identity)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		c.err = err
		return err
	}
	c.err = nil
	c.observeLocked(session)
	return nil
}

// Resume loads an existing session by ID, used to offer "continue" on the welcome screen.
func (c *Controller) Resume(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSessionData
	}
	c.mu.RLock()
	stage := c.stage
	c.mu.RUnlock()
	if stage != domain.StageWelcome {
		return ErrNotAtWelcome
	}

	session, err := c.backend.Existing(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	c.Observe(session)
	return nil
}

// Submit forwards an answer for (level, index). The stage only changes once
// the backend responds; a failure leaves it untouched.
func (c *Controller) Submit(ctx context.Context, level domain.Level, index int, answer domain.Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	if c.stage != domain.StageQuestion {
		c.mu.RUnlock()
		return ErrNotInQuestion
	}
	q, ok := c.session.CurrentQuestion()
	if !ok || c.session.CurrentLevel != level || q.Index != index {
		c.mu.RUnlock()
		return ErrStaleQuestion
	}
	sessionID := c.session.ID
	c.mu.RUnlock()

	updated, err := c.backend.SubmitAnswer(ctx, sessionID, answer)
	if err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	c.Observe(updated)
	return nil
}

// Continue acknowledges the transition screen. The backend clears its flag and
// the stage moves to question right away, which is what Reconcile computes once
// the cleared flag is observed. Final results in the reply still win.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.RLock()
	if c.stage != domain.StageTransition {
		c.mu.RUnlock()
		return ErrNotInTransition
	}
	sessionID := c.session.ID
	c.mu.RUnlock()

	updated, err := c.backend.ClearTransition(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("continue: %w", err)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != domain.StageTransition {
		c.observeLocked(updated)
		return nil
	}
	c.session = updated.Clone()
	c.err = nil
	if c.session == nil || !c.session.TransitionRequested {
		log.Printf("session %s: stage %s -> %s", c.sessionIDLocked(), c.stage, domain.StageQuestion)
		c.stage = domain.StageQuestion
		c.enteringTransition = false
	}
	c.observeLocked(nil)
	return nil
}

// Reset returns to the welcome screen so a new attempt can start on this device.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.stage = domain.StageWelcome
	c.session = nil
	c.enteringTransition = false
	c.err = nil
	c.mu.Unlock()
}

func (c *Controller) sessionIDLocked() string {
	if c.session == nil {
		return "-"
	}
	return c.session.ID
}
