package domain

// Level is a difficulty band. Sessions move through Levels in order.
type Level string

const (
	LevelStarter Level = "Starter"
	Level1       Level = "Level 1"
	Level2       Level = "Level 2"
	Level3       Level = "Level 3"
	Level4       Level = "Level 4"
	Level5       Level = "Level 5"
	Level6       Level = "Level 6"
	Level7       Level = "Level 7"
	Level8       Level = "Level 8"
	Level9       Level = "Level 9"
)

// Levels is the ordered progression from easiest to hardest.
var Levels = []Level{
	LevelStarter, Level1, Level2, Level3, Level4,
	Level5, Level6, Level7, Level8, Level9,
}

// Rank returns the position of l in Levels, or -1 if unknown.
func (l Level) Rank() int {
	for i, lv := range Levels {
		if lv == l {
			return i
		}
	}
	return -1
}

// Next returns the level after l. ok is false for the last or an unknown level.
func (l Level) Next() (Level, bool) {
	r := l.Rank()
	if r < 0 || r+1 >= len(Levels) {
		return "", false
	}
	return Levels[r+1], true
}
