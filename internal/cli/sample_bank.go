package cli

import "placement-runner/internal/domain"

// sampleBank is served when no Postgres question bank is configured.
func sampleBank() map[domain.Level][]domain.BankQuestion {
	return map[domain.Level][]domain.BankQuestion{
		domain.LevelStarter: {
			{Prompt: "We ___ happy to see you.", Options: []string{"is", "am", "are", "be"}, Correct: 2},
			{Prompt: "She ___ tea every morning.", Options: []string{"drink", "drinks", "drinking", "drank"}, Correct: 1},
			{Prompt: "There ___ two books on the table.", Options: []string{"is", "are", "be", "was"}, Correct: 1},
		},
		domain.Level1: {
			{Prompt: "Listen and choose what the speaker wants.", AudioURL: "/audio/level1-q1.mp3", Options: []string{"A taxi", "A coffee", "A ticket"}, Correct: 1},
			{Prompt: "I have lived here ___ 2019.", Options: []string{"for", "since", "from", "at"}, Correct: 1},
			{Prompt: "If it ___ tomorrow, we will stay home.", Options: []string{"rains", "will rain", "rained", "raining"}, Correct: 0},
		},
		domain.Level2: {
			{Prompt: "Listen and choose where the conversation happens.", AudioURL: "/audio/level2-q1.mp3", Options: []string{"At a bank", "At a station", "At a school"}, Correct: 1},
			{Prompt: "By the time we arrived, the film ___.", Options: []string{"started", "has started", "had started", "starts"}, Correct: 2},
			{Prompt: "She asked me where I ___.", Options: []string{"live", "lived", "am living", "do live"}, Correct: 1},
		},
		domain.Level3: {
			{Prompt: "Hardly ___ the door when the phone rang.", Options: []string{"I had opened", "had I opened", "I opened", "did I opened"}, Correct: 1},
			{Prompt: "The report needs ___ before Friday.", Options: []string{"finish", "finishing", "to finishing", "finished"}, Correct: 1},
		},
	}
}
