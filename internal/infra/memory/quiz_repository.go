package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz-bot/internal/domain"
)

// QuestionRepository serves a corpus held in process memory. SaveCorpus swaps
// the whole corpus, so a reload never exposes a half-written state.
type QuestionRepository struct {
	mu      sync.RWMutex
	records []domain.QuizRecord
	byID    map[string]domain.QuizRecord

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(corpus domain.Corpus) *QuestionRepository {
	r := &QuestionRepository{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.replace(corpus)
	return r
}

func (r *QuestionRepository) replace(corpus domain.Corpus) {
	records := corpus.Records()
	byID := make(map[string]domain.QuizRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	r.mu.Lock()
	r.records = records
	r.byID = byID
	r.mu.Unlock()
}

// SaveCorpus replaces the served corpus.
func (r *QuestionRepository) SaveCorpus(_ context.Context, corpus domain.Corpus) error {
	r.replace(corpus)
	return nil
}

// Random picks uniformly with replacement.
func (r *QuestionRepository) Random(_ context.Context) (domain.QuizRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return domain.QuizRecord{}, domain.ErrEmptyCorpus
	}

	r.rndMu.Lock()
	i := r.rnd.Intn(len(r.records))
	r.rndMu.Unlock()
	return r.records[i], nil
}

func (r *QuestionRepository) Get(_ context.Context, id string) (domain.QuizRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if record, ok := r.byID[id]; ok {
		return record, nil
	}
	return domain.QuizRecord{}, domain.ErrQuestionNotFound
}

// Len reports the number of served questions.
func (r *QuestionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// StaticCorpusSource is a CorpusSource backed by a fixed corpus (useful for tests/demos).
type StaticCorpusSource struct {
	corpus domain.Corpus
}

func NewStaticCorpusSource(corpus domain.Corpus) *StaticCorpusSource {
	return &StaticCorpusSource{corpus: corpus}
}

func (s *StaticCorpusSource) LoadCorpus(_ context.Context) (domain.Corpus, error) {
	if len(s.corpus) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	return s.corpus, nil
}
