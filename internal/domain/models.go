package domain

import "time"

// NoAnswer is submitted when a question expires without a selection.
const NoAnswer Answer = -1

// Answer is the zero-based option index picked for a question, or NoAnswer.
type Answer int

// Valid reports whether the answer is NoAnswer or addresses one of n options.
func (a Answer) Valid(n int) bool {
	return a == NoAnswer || (a >= 0 && int(a) < n)
}

// Question is the client-visible part of a test question. The correct option never leaves the server.
type Question struct {
	Index    int      `json:"index"`
	Prompt   string   `json:"prompt"`
	AudioURL string   `json:"audioUrl,omitempty"`
	Options  []string `json:"options"`
}

// HasAudio reports whether the question is self-paced audio instead of timed.
func (q Question) HasAudio() bool {
	return q.AudioURL != ""
}

// BankQuestion is a question as stored in the question bank, answer key included.
type BankQuestion struct {
	Prompt   string   `json:"prompt"`
	AudioURL string   `json:"audioUrl,omitempty"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
}

// FinalResults is present only once the whole session has been scored.
type FinalResults struct {
	FinalLevel Level `json:"finalLevel"`
	Score      int   `json:"score"`
}

// Session is one candidate's attempt as observed by the runner.
type Session struct {
	ID                  string        `json:"id"`
	Identity            Identity      `json:"identity"`
	CurrentLevel        Level         `json:"currentLevel"`
	Questions           []Question    `json:"questions"`
	CurrentIndex        int           `json:"currentIndex"`
	TransitionRequested bool          `json:"transitionRequested"`
	NextLevel           Level         `json:"nextLevel,omitempty"`
	FinalResults        *FinalResults `json:"finalResults,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// CurrentQuestion returns the question the candidate is on, if any.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s == nil || s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		cp.Questions[i] = q
	}
	if s.FinalResults != nil {
		fr := *s.FinalResults
		cp.FinalResults = &fr
	}
	return &cp
}

// SessionRecord is the server-side state behind a Session, including scoring tallies.
type SessionRecord struct {
	Session       Session   `json:"session"`
	Answers       []Answer  `json:"answers"`
	LevelAsked    int       `json:"levelAsked"`
	LevelCorrect  int       `json:"levelCorrect"`
	TotalAsked    int       `json:"totalAsked"`
	TotalCorrect  int       `json:"totalCorrect"`
	HighestPassed Level     `json:"highestPassed,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Completed reports whether the record holds final results.
func (r *SessionRecord) Completed() bool {
	return r.Session.FinalResults != nil
}
