package runner

import (
	"context"
	"sync"
	"time"

	"placement-runner/internal/domain"
)

// SubmitFunc delivers an answer for the presented question to the backing session.
type SubmitFunc func(ctx context.Context, answer domain.Answer) error

// Presenter owns the local state of one question: the selection, the in-flight
// guard and the expiry auto-submit. It is replaced, never reset, when the
// question changes.
type Presenter struct {
	level     domain.Level
	question  domain.Question
	submit    SubmitFunc
	countdown *Countdown
	replay    *ReplayLimiter
	tick      time.Duration

	mu        sync.Mutex
	selected  domain.Answer
	inFlight  bool
	submitted bool
	autoFired bool
	failed    bool
	pending   domain.Answer
	lastErr   error
	remaining int
	mountCtx  context.Context
	cancel    context.CancelFunc
	onChange  func()
}

// PresenterView is a point-in-time copy of the presenter state.
type PresenterView struct {
	Level     domain.Level    `json:"level"`
	Question  domain.Question `json:"question"`
	Timed     bool            `json:"timed"`
	Remaining int             `json:"remaining"`
	Expired   bool            `json:"expired"`
	Selected  domain.Answer   `json:"selected"`
	InFlight  bool            `json:"inFlight"`
	Submitted bool            `json:"submitted"`
	CanSubmit bool            `json:"canSubmit"`
	CanRetry  bool            `json:"canRetry"`
	Plays     int             `json:"plays"`
	MaxPlays  int             `json:"maxPlays"`
	CanPlay   bool            `json:"canPlay"`
	Playing   bool            `json:"playing"`
	Error     string          `json:"error,omitempty"`
}

// NewPresenter prepares question q of level. Timed questions anchor their
// countdown here; audio questions get a replay limiter instead.
func NewPresenter(ctx context.Context, store AttemptStore, level domain.Level, q domain.Question, settings Settings, now func() time.Time, submit SubmitFunc) *Presenter {
	settings = settings.withDefaults()
	p := &Presenter{
		level:    level,
		question: q,
		submit:   submit,
		tick:     settings.TickInterval,
		selected: domain.NoAnswer,
		pending:  domain.NoAnswer,
	}
	if q.HasAudio() {
		p.replay = NewReplayLimiter(store, level, q.Index, settings.MaxReplays)
	} else {
		p.countdown = NewCountdown(ctx, store, level, q.Index, settings.QuestionWindow, now)
		p.remaining = p.countdown.Remaining()
	}
	return p
}

// Level returns the level of the presented question.
func (p *Presenter) Level() domain.Level { return p.level }

// Question returns the presented question.
func (p *Presenter) Question() domain.Question { return p.question }

// Mount starts the countdown loop. onChange is called whenever visible state changes.
func (p *Presenter) Mount(ctx context.Context, onChange func()) {
	mctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.mountCtx = mctx
	p.cancel = cancel
	p.onChange = onChange
	p.mu.Unlock()

	if p.countdown != nil {
		go p.countdown.Run(mctx, p.tick, p.handleTick)
	}
}

// Unmount stops the countdown and cancels any submission still in flight.
// It does not wait, so it is safe to call from the presenter's own callbacks.
func (p *Presenter) Unmount() {
	p.mu.Lock()
	cancel := p.cancel
	p.onChange = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Select records the candidate's choice.
func (p *Presenter) Select(option int) error {
	p.mu.Lock()
	switch {
	case p.submitted:
		p.mu.Unlock()
		return ErrAlreadySubmitted
	case p.inFlight:
		p.mu.Unlock()
		return ErrSubmissionInFlight
	case p.expiredLocked():
		p.mu.Unlock()
		return ErrQuestionExpired
	case option < 0 || !domain.Answer(option).Valid(len(p.question.Options)):
		p.mu.Unlock()
		return domain.ErrInvalidOption
	}
	p.selected = domain.Answer(option)
	p.mu.Unlock()
	p.notify()
	return nil
}

// Submit sends the selected option.
func (p *Presenter) Submit(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.submitted:
		p.mu.Unlock()
		return ErrAlreadySubmitted
	case p.inFlight:
		p.mu.Unlock()
		return ErrSubmissionInFlight
	case p.expiredLocked():
		p.mu.Unlock()
		return ErrQuestionExpired
	case p.selected == domain.NoAnswer:
		p.mu.Unlock()
		return ErrNoSelection
	}
	answer := p.selected
	p.inFlight = true
	p.mu.Unlock()
	p.notify()

	return p.deliver(ctx, answer)
}

// Retry re-sends the answer of the last failed submission. This is the only
// way to resend once the question has expired.
func (p *Presenter) Retry(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.submitted:
		p.mu.Unlock()
		return ErrAlreadySubmitted
	case p.inFlight:
		p.mu.Unlock()
		return ErrSubmissionInFlight
	case !p.failed:
		p.mu.Unlock()
		return ErrNothingToRetry
	}
	answer := p.pending
	if !p.expiredLocked() && p.selected != domain.NoAnswer {
		answer = p.selected
	}
	p.inFlight = true
	p.mu.Unlock()
	p.notify()

	return p.deliver(ctx, answer)
}

// Play records an audio playback.
func (p *Presenter) Play(ctx context.Context) (int, error) {
	if p.replay == nil {
		return 0, ErrNoAudio
	}
	n, err := p.replay.RecordPlay(ctx)
	p.notify()
	return n, err
}

// PlaybackEnded is reported by the client when the audio stops.
func (p *Presenter) PlaybackEnded() {
	if p.replay == nil {
		return
	}
	p.replay.PlaybackEnded()
	p.notify()
}

// CanSubmit mirrors the submit button: a selection, nothing in flight, not expired.
func (p *Presenter) CanSubmit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canSubmitLocked()
}

// View snapshots the presenter.
func (p *Presenter) View(ctx context.Context) PresenterView {
	p.mu.Lock()
	v := PresenterView{
		Level:     p.level,
		Question:  p.question,
		Timed:     p.countdown != nil,
		Remaining: p.remaining,
		Expired:   p.expiredLocked(),
		Selected:  p.selected,
		InFlight:  p.inFlight,
		Submitted: p.submitted,
		CanSubmit: p.canSubmitLocked(),
		CanRetry:  p.failed && !p.inFlight && !p.submitted,
	}
	if p.lastErr != nil {
		v.Error = p.lastErr.Error()
	}
	p.mu.Unlock()

	if p.replay != nil {
		v.Plays = p.replay.Count(ctx)
		v.MaxPlays = p.replay.Max()
		v.CanPlay = v.Plays < v.MaxPlays && !p.replay.Playing()
		v.Playing = p.replay.Playing()
	}
	return v
}

func (p *Presenter) handleTick(remaining int, expiredNow bool) {
	p.mu.Lock()
	changed := remaining != p.remaining
	p.remaining = remaining
	p.mu.Unlock()

	if expiredNow {
		p.autoSubmit()
		return
	}
	if changed {
		p.notify()
	}
}

// autoSubmit sends the current selection, or NoAnswer, once the deadline passes.
// It fires at most once per presenter and never while another submission is pending.
func (p *Presenter) autoSubmit() {
	p.mu.Lock()
	if p.submitted || p.inFlight || p.autoFired {
		p.mu.Unlock()
		p.notify()
		return
	}
	p.autoFired = true
	answer := p.selected
	ctx := p.mountCtx
	p.inFlight = true
	p.mu.Unlock()
	p.notify()

	if ctx == nil {
		ctx = context.Background()
	}
	_ = p.deliver(ctx, answer)
}

func (p *Presenter) deliver(ctx context.Context, answer domain.Answer) error {
	ctx, cancel := p.scoped(ctx)
	defer cancel()

	err := p.submit(ctx, answer)

	p.mu.Lock()
	p.inFlight = false
	if err == nil {
		p.submitted = true
		p.failed = false
		p.lastErr = nil
	} else {
		p.failed = true
		p.pending = answer
		p.lastErr = err
	}
	p.mu.Unlock()
	p.notify()
	return err
}

// scoped ties a submission to the mount lifetime so unmounting cancels it.
func (p *Presenter) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	mctx := p.mountCtx
	p.mu.Unlock()
	if mctx == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(mctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (p *Presenter) canSubmitLocked() bool {
	return p.selected != domain.NoAnswer && !p.inFlight && !p.submitted && !p.expiredLocked()
}

func (p *Presenter) expiredLocked() bool {
	return p.countdown != nil && p.countdown.Expired()
}

func (p *Presenter) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
