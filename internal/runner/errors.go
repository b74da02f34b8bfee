package runner

import "errors"

var (
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrAlreadySubmitted   = errors.New("question already answered")
	ErrNoSelection        = errors.New("no option selected")
	ErrQuestionExpired    = errors.New("question time expired")
	ErrNothingToRetry     = errors.New("no failed submission to retry")
	ErrNoAudio            = errors.New("question has no audio")
	ErrReplayLimitReached = errors.New("audio replay limit reached")
	ErrStaleQuestion      = errors.New("submission for a question no longer shown")
	ErrNotInQuestion      = errors.New("runner is not presenting a question")
	ErrNotInTransition    = errors.New("runner is not on a transition screen")
	ErrNotAtWelcome       = errors.New("test already started")
	ErrStartInFlight      = errors.New("session start already in flight")
	ErrNoSessionData      = errors.New("no session to resume")
)
