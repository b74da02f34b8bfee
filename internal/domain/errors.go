package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a placement session does not exist.
	ErrSessionNotFound = errors.New("placement session not found")
	// ErrAlreadyCompleted is returned when the identity has already finished the test.
	ErrAlreadyCompleted = errors.New("placement test already completed")
	// ErrInvalidIdentity wraps identity validation failures at session start.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrNoQuestions indicates a level has no questions in the bank.
	ErrNoQuestions = errors.New("no questions for level")
	// ErrInvalidOption indicates a submitted option index is out of range.
	ErrInvalidOption = errors.New("option not found")
	// ErrTransitionPending is returned when answering while a level transition waits to be cleared.
	ErrTransitionPending = errors.New("level transition pending")
	// ErrUnknownLevel indicates a level outside the configured progression.
	ErrUnknownLevel = errors.New("unknown level")
)
