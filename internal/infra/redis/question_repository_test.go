package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"placement-runner/internal/domain"
	"placement-runner/internal/infra/memory"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionBank(sampleBank()),
	}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute)

	qs, err := repo.GetLevel(context.Background(), domain.LevelStarter)
	if err != nil {
		t.Fatalf("get level: %v", err)
	}
	if len(qs) != 1 || qs[0].Correct != 2 {
		t.Fatalf("unexpected questions %+v", qs)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("placement:questions:Starter") {
		t.Fatalf("expected level cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	qs, _ = repo.GetLevel(context.Background(), domain.LevelStarter)
	if loader.calls != 1 || len(qs) != 1 || qs[0].Correct != 2 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuestionRepositoryDoesNotCacheEmptyLevel(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionBank(sampleBank())}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute)

	_, _ = repo.GetLevel(context.Background(), domain.Level9)
	if mr.Exists("placement:questions:Level 9") {
		t.Fatalf("empty level must not be cached")
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadLevel(ctx context.Context, level domain.Level) ([]domain.BankQuestion, error) {
	l.calls++
	return l.QuestionLoader.LoadLevel(ctx, level)
}

func sampleBank() map[domain.Level][]domain.BankQuestion {
	return map[domain.Level][]domain.BankQuestion{
		domain.LevelStarter: {
			{Prompt: "We ___ happy.", Options: []string{"is", "am", "are"}, Correct: 2},
		},
	}
}
