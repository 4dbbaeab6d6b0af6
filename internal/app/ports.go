package app

import (
	"context"
	"time"

	"trivia-quiz-bot/internal/domain"
)

// SessionStore abstracts where per-user session state lives (in-memory, Redis, etc).
// Implementations wrap backend failures in domain.ErrStoreUnavailable.
type SessionStore interface {
	PutAsked(ctx context.Context, user, questionID string) error
	GetAsked(ctx context.Context, user string) (string, bool, error)
	ClearAsked(ctx context.Context, user string) error
	// IncrementCounter atomically adds one, treating a missing counter as 0.
	IncrementCounter(ctx context.Context, user string, counter domain.Counter) (int64, error)
	SetCounter(ctx context.Context, user string, counter domain.Counter, value int64) error
	// GetCounter returns 0 for a missing counter.
	GetCounter(ctx context.Context, user string, counter domain.Counter) (int64, error)
	GetState(ctx context.Context, user string) (domain.State, bool, error)
	SetState(ctx context.Context, user string, state domain.State) error
	// Clear drops the asked question and every counter of the user.
	Clear(ctx context.Context, user string) error
}

// QuestionRepository serves questions from the loaded corpus.
type QuestionRepository interface {
	Random(ctx context.Context) (domain.QuizRecord, error)
	Get(ctx context.Context, id string) (domain.QuizRecord, error)
}

// CorpusSource loads a complete corpus (quiz directory, database archive).
type CorpusSource interface {
	LoadCorpus(ctx context.Context) (domain.Corpus, error)
}

// CorpusSink persists a corpus so question repositories can serve it.
type CorpusSink interface {
	SaveCorpus(ctx context.Context, corpus domain.Corpus) error
}

// Recorder receives one observation per handled turn.
type Recorder interface {
	ObserveTurn(command, outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTurn(string, string, time.Duration) {}
