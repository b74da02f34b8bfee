package domain

// Stage is the coarse screen the runner is showing.
type Stage string

const (
	StageWelcome    Stage = "welcome"
	StageQuestion   Stage = "question"
	StageTransition Stage = "transition"
	StageCompletion Stage = "completion"
)
