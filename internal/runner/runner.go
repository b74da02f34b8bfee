package runner

import (
	"context"
	"sync"
	"time"

	"placement-runner/internal/domain"
)

// View is everything a screen needs to render the runner.
type View struct {
	Stage     domain.Stage         `json:"stage"`
	SessionID string               `json:"sessionId,omitempty"`
	Level     domain.Level         `json:"level,omitempty"`
	Question  *PresenterView       `json:"question,omitempty"`
	NextLevel domain.Level         `json:"nextLevel,omitempty"`
	Results   *domain.FinalResults `json:"results,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Runner drives one device through the test. It mounts a fresh Presenter each
// time the (level, index) shown changes and unmounts it when the question stage
// is left, so no timer outlives its question.
type Runner struct {
	ctrl     *Controller
	store    AttemptStore
	settings Settings
	now      func() time.Time
	onChange func(View)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	presenter *Presenter
	closed    bool

	// refreshMu orders presenter swaps; emitMu orders view delivery so the
	// last view handed to onChange is always built from the latest state.
	refreshMu sync.Mutex
	emitMu    sync.Mutex
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock injects the time source used by countdowns.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithOnChange registers a callback receiving a View after every visible change.
// Calls are serialized and fn must not call back into the Runner's actions.
func WithOnChange(fn func(View)) Option {
	return func(r *Runner) { r.onChange = fn }
}

func NewRunner(backend SessionBackend, store AttemptStore, settings Settings, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		ctrl:     NewController(backend, store),
		store:    store,
		settings: settings.withDefaults(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Controller exposes the stage controller.
func (r *Runner) Controller() *Controller {
	return r.ctrl
}

// Start begins a new attempt for identity.
func (r *Runner) Start(ctx context.Context, identity domain.Identity) error {
	err := r.ctrl.Start(ctx, identity)
	r.refresh()
	return err
}

// Resume continues an existing session by ID.
func (r *Runner) Resume(ctx context.Context, sessionID string) error {
	err := r.ctrl.Resume(ctx, sessionID)
	r.refresh()
	return err
}

// Select picks an option on the current question.
func (r *Runner) Select(option int) error {
	p, err := r.current()
	if err != nil {
		return err
	}
	return p.Select(option)
}

// Submit sends the selected option for the current question.
func (r *Runner) Submit(ctx context.Context) error {
	p, err := r.current()
	if err != nil {
		return err
	}
	return p.Submit(ctx)
}

// Retry re-sends a failed submission for the current question.
func (r *Runner) Retry(ctx context.Context) error {
	p, err := r.current()
	if err != nil {
		return err
	}
	return p.Retry(ctx)
}

// Play records an audio playback on the current question.
func (r *Runner) Play(ctx context.Context) (int, error) {
	p, err := r.current()
	if err != nil {
		return 0, err
	}
	return p.Play(ctx)
}

// PlaybackEnded reports the end of audio on the current question.
func (r *Runner) PlaybackEnded() {
	if p, err := r.current(); err == nil {
		p.PlaybackEnded()
	}
}

// Continue leaves the transition screen.
func (r *Runner) Continue(ctx context.Context) error {
	err := r.ctrl.Continue(ctx)
	r.refresh()
	return err
}

// DismissError hides the surfaced error.
func (r *Runner) DismissError() {
	r.ctrl.DismissError()
	r.emit()
}

// Reset returns to the welcome screen.
func (r *Runner) Reset() {
	r.ctrl.Reset()
	r.refresh()
}

// Close unmounts the current question and stops all timers.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	p := r.presenter
	r.presenter = nil
	r.mu.Unlock()
	if p != nil {
		p.Unmount()
	}
	r.cancel()
}

// View snapshots the runner.
func (r *Runner) View(ctx context.Context) View {
	v := View{Stage: r.ctrl.Stage()}
	if err := r.ctrl.Err(); err != nil {
		v.Error = err.Error()
	}
	if s := r.ctrl.Session(); s != nil {
		v.SessionID = s.ID
		v.Level = s.CurrentLevel
		if v.Stage == domain.StageTransition {
			v.NextLevel = s.NextLevel
		}
		if v.Stage == domain.StageCompletion {
			v.Results = s.FinalResults
		}
	}

	r.mu.Lock()
	p := r.presenter
	r.mu.Unlock()
	if p != nil && v.Stage == domain.StageQuestion {
		pv := p.View(ctx)
		v.Question = &pv
	}
	return v
}

func (r *Runner) current() (*Presenter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.presenter == nil {
		return nil, ErrNotInQuestion
	}
	return r.presenter, nil
}

// refresh reconciles the mounted presenter with the controller and emits a view.
func (r *Runner) refresh() {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	level, q, ok := r.ctrl.CurrentQuestion()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	old := r.presenter
	if ok && old != nil && old.Level() == level && old.Question().Index == q.Index {
		r.mu.Unlock()
		r.emit()
		return
	}
	r.presenter = nil
	var next *Presenter
	if ok {
		next = NewPresenter(r.ctx, r.store, level, q, r.settings, r.now, r.submitFor(level, q.Index))
		r.presenter = next
	}
	r.mu.Unlock()

	if old != nil {
		old.Unmount()
	}
	if next != nil {
		next.Mount(r.ctx, r.emit)
	}
	r.emit()
}

func (r *Runner) submitFor(level domain.Level, index int) SubmitFunc {
	return func(ctx context.Context, answer domain.Answer) error {
		err := r.ctrl.Submit(ctx, level, index, answer)
		if err == nil {
			r.refresh()
		}
		return err
	}
}

func (r *Runner) emit() {
	if r.onChange == nil {
		return
	}
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.onChange(r.View(r.ctx))
}
