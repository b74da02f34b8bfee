package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"placement-runner/internal/domain"
)

// QuestionLoader loads a level's question bank JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadLevel returns no questions, and no error, for a level without a row.
func (l *QuestionLoader) LoadLevel(ctx context.Context, level domain.Level) ([]domain.BankQuestion, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_levels WHERE level=$1`, string(level)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load level %s: %w", level, err)
	}
	var qs []domain.BankQuestion
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, fmt.Errorf("unmarshal level %s: %w", level, err)
	}
	return qs, nil
}

// SaveLevel replaces the bank of level.
func (l *QuestionLoader) SaveLevel(ctx context.Context, level domain.Level, qs []domain.BankQuestion) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return fmt.Errorf("marshal level %s: %w", level, err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_levels (level, data) VALUES ($1, $2)
		ON CONFLICT (level) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		string(level), data,
	)
	if err != nil {
		return fmt.Errorf("save level %s: %w", level, err)
	}
	return nil
}
