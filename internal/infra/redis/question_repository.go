package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"placement-runner/internal/domain"
	"placement-runner/internal/infra/levelcache"
)

// QuestionLoader fetches a level's questions from a backing store (e.g., Postgres).
type QuestionLoader = levelcache.Loader

// QuestionRepository shares level banks across instances through Redis:
//
//	SET placement:questions:{level} {questions json} EX {ttl}
type QuestionRepository struct {
	*levelcache.Cache
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		Cache: levelcache.New(bankKeys{client: client}, loader, ttl),
	}
}

type bankKeys struct {
	client *redis.Client
}

func (b bankKeys) Lookup(ctx context.Context, level domain.Level) ([]domain.BankQuestion, bool) {
	data, err := b.client.Get(ctx, levelKey(level)).Bytes()
	if err != nil {
		return nil, false
	}
	var qs []domain.BankQuestion
	if err := json.Unmarshal(data, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

func (b bankKeys) Keep(ctx context.Context, level domain.Level, qs []domain.BankQuestion, ttl time.Duration) {
	data, err := json.Marshal(qs)
	if err != nil {
		return
	}
	if err := b.client.Set(ctx, levelKey(level), data, ttl).Err(); err != nil {
		log.Printf("cache level %s: %v", level, err)
	}
}

func levelKey(level domain.Level) string {
	return "placement:questions:" + string(level)
}
