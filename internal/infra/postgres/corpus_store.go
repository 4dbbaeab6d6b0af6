package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-quiz-bot/internal/domain"
)

const upsertQuestionSQL = `
INSERT INTO quiz_questions (id, question, answer, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET answer = EXCLUDED.answer, updated_at = now()`

// CorpusStore archives corpora in Postgres. Saving upserts by question id,
// so the archive accumulates every question ever loaded.
type CorpusStore struct {
	pool *pgxpool.Pool
}

func NewCorpusStore(pool *pgxpool.Pool) *CorpusStore {
	return &CorpusStore{pool: pool}
}

// SaveCorpus upserts every record in a single transaction.
func (s *CorpusStore) SaveCorpus(ctx context.Context, corpus domain.Corpus) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, record := range corpus {
			batch.Queue(upsertQuestionSQL, record.ID, record.Question, record.Answer)
		}
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("upsert question: %w", err)
			}
		}
		return results.Close()
	})
}

// LoadCorpus reads the whole archive.
func (s *CorpusStore) LoadCorpus(ctx context.Context) (domain.Corpus, error) {
	rows, err := s.pool.Query(ctx, `SELECT question, answer FROM quiz_questions`)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	defer rows.Close()

	corpus := domain.Corpus{}
	for rows.Next() {
		var question, answer string
		if err := rows.Scan(&question, &answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		corpus.Add(question, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(corpus) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	return corpus, nil
}
