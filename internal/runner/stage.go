package runner

import "placement-runner/internal/domain"

// Signals are the session facts the stage machine reacts to.
type Signals struct {
	HasFinalResults     bool
	TransitionRequested bool
	HasSessionData      bool
}

// SignalsFrom derives the signals carried by a session snapshot. A nil session has none.
func SignalsFrom(s *domain.Session) Signals {
	if s == nil {
		return Signals{}
	}
	return Signals{
		HasFinalResults:     s.FinalResults != nil,
		TransitionRequested: s.TransitionRequested,
		HasSessionData:      len(s.Questions) > 0,
	}
}

// Reconcile returns the stage that follows current under sig. Rules are checked
// in priority order and the function is pure, so feeding the same input twice
// never produces a second transition. Completion is terminal.
func Reconcile(current domain.Stage, sig Signals) domain.Stage {
	if current == domain.StageCompletion {
		return current
	}
	switch {
	case sig.HasFinalResults:
		return domain.StageCompletion
	case sig.TransitionRequested && current != domain.StageTransition:
		return domain.StageTransition
	case !sig.TransitionRequested && current == domain.StageTransition:
		return domain.StageQuestion
	case sig.HasSessionData && current == domain.StageWelcome:
		return domain.StageQuestion
	}
	return current
}
