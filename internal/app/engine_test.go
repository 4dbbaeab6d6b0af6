package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trivia-quiz-bot/internal/app"
	"trivia-quiz-bot/internal/domain"
	"trivia-quiz-bot/internal/infra/memory"
)

var (
	newQuestion = domain.Command{Kind: domain.CommandNewQuestion}
	showAnswer  = domain.Command{Kind: domain.CommandShowAnswer}
	score       = domain.Command{Kind: domain.CommandScore}
	start       = domain.Command{Kind: domain.CommandStart}
	cancel      = domain.Command{Kind: domain.CommandCancel}
)

func attempt(text string) domain.Command {
	return domain.Command{Kind: domain.CommandAttempt, Text: text}
}

func franceCorpus() domain.Corpus {
	corpus := domain.Corpus{}
	corpus.Add("Capital of France?", "Paris. (also called City of Light)")
	return corpus
}

type fixture struct {
	engine   *app.Engine
	sessions *memory.SessionStore
	texts    app.Texts
}

func newFixture(corpus domain.Corpus, opts ...app.Option) fixture {
	sessions := memory.NewSessionStore()
	return fixture{
		engine:   app.NewEngine(sessions, memory.NewQuestionRepository(corpus), opts...),
		sessions: sessions,
		texts:    app.DefaultTexts(),
	}
}

func (f fixture) send(t *testing.T, user string, cmd domain.Command) domain.Reply {
	t.Helper()
	reply, err := f.engine.Handle(context.Background(), user, cmd)
	require.NoError(t, err)
	return reply
}

func (f fixture) counter(t *testing.T, user string, c domain.Counter) int64 {
	t.Helper()
	n, err := f.sessions.GetCounter(context.Background(), user, c)
	require.NoError(t, err)
	return n
}

func TestCorrectShortAnswerCounts(t *testing.T) {
	f := newFixture(franceCorpus())

	reply := f.send(t, "tg:1", newQuestion)
	assert.Equal(t, "Capital of France?", reply.Text)
	assert.Equal(t, domain.StateAnswering, reply.State)

	reply = f.send(t, "tg:1", attempt("paris"))
	assert.Equal(t, f.texts.Correct, reply.Text)
	assert.Equal(t, domain.StateChoosing, reply.State)
	assert.Equal(t, int64(1), f.counter(t, "tg:1", domain.CounterCorrectAnswers))
	assert.Equal(t, int64(1), f.counter(t, "tg:1", domain.CounterTotalQuestions))
}

func TestParentheticalAttemptMatches(t *testing.T) {
	f := newFixture(franceCorpus())

	f.send(t, "tg:1", newQuestion)
	reply := f.send(t, "tg:1", attempt("Paris (also called City of Light)"))
	assert.Equal(t, f.texts.Correct, reply.Text)
	assert.Equal(t, int64(1), f.counter(t, "tg:1", domain.CounterCorrectAnswers))
}

func TestShowAnswerBeforeAskingIsRejected(t *testing.T) {
	f := newFixture(franceCorpus())

	reply := f.send(t, "tg:1", showAnswer)
	assert.Equal(t, f.texts.NotStarted, reply.Text)
	assert.Equal(t, domain.StateChoosing, reply.State)
	assert.ErrorIs(t, reply.Cause, domain.ErrNoActiveQuestion)
}

func TestConcurrentUsersStayIsolated(t *testing.T) {
	corpus := franceCorpus()
	corpus.Add("Longest river?", "Nile.")
	f := newFixture(corpus)

	const users = 16
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("tg:%d", u)
			ctx := context.Background()
			for round := 0; round < 5; round++ {
				_, _ = f.engine.Handle(ctx, user, newQuestion)
				if u%2 == 0 {
					_, _ = f.engine.Handle(ctx, user, showAnswer)
				} else {
					_, _ = f.engine.Handle(ctx, user, attempt("wrong"))
					_, _ = f.engine.Handle(ctx, user, showAnswer)
				}
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		user := fmt.Sprintf("tg:%d", u)
		assert.Equal(t, int64(5), f.counter(t, user, domain.CounterTotalQuestions), user)
		assert.Equal(t, int64(0), f.counter(t, user, domain.CounterCorrectAnswers), user)
		_, asked, err := f.sessions.GetAsked(context.Background(), user)
		require.NoError(t, err)
		assert.False(t, asked, user)
	}
}

func TestConversationTable(t *testing.T) {
	texts := app.DefaultTexts()
	cases := []struct {
		name      string
		setup     []domain.Command
		input     domain.Command
		wantText  string
		wantState domain.State
		wantKB    domain.KeyboardHint
		wantCause error
	}{
		{"start welcomes", nil, start, texts.Welcome, domain.StateChoosing, domain.KeyboardShow, nil},
		{"start while answering", []domain.Command{newQuestion}, start, texts.Welcome, domain.StateChoosing, domain.KeyboardShow, nil},
		{"new question asks", nil, newQuestion, "Capital of France?", domain.StateAnswering, domain.KeyboardShow, nil},
		{"new question while answering teases", []domain.Command{newQuestion}, newQuestion, texts.Tease, domain.StateAnswering, domain.KeyboardShow, nil},
		{"show answer reveals first sentence", []domain.Command{newQuestion}, showAnswer, "Paris", domain.StateChoosing, domain.KeyboardShow, nil},
		{"show answer while choosing", nil, showAnswer, texts.NotStarted, domain.StateChoosing, domain.KeyboardShow, domain.ErrNoActiveQuestion},
		{"wrong attempt", []domain.Command{newQuestion}, attempt("London"), texts.Wrong, domain.StateAnswering, domain.KeyboardKeep, nil},
		{"attempt without question", nil, attempt("Paris"), texts.NoActiveQuestion, domain.StateChoosing, domain.KeyboardShow, domain.ErrNoActiveQuestion},
		{"score while choosing", nil, score, "Вопросов задано: 0\nПравильных ответов: 0", domain.StateChoosing, domain.KeyboardShow, nil},
		{"score while answering", []domain.Command{newQuestion}, score, "Вопросов задано: 1\nПравильных ответов: 0", domain.StateAnswering, domain.KeyboardShow, nil},
		{"cancel says farewell", []domain.Command{newQuestion}, cancel, texts.Farewell, domain.StateEnded, domain.KeyboardRemove, nil},
		{"input after cancel", []domain.Command{cancel}, newQuestion, texts.SessionEnded, domain.StateEnded, domain.KeyboardRemove, domain.ErrSessionEnded},
		{"start after cancel", []domain.Command{cancel}, start, texts.Welcome, domain.StateChoosing, domain.KeyboardShow, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(franceCorpus())
			for _, cmd := range tc.setup {
				f.send(t, "tg:1", cmd)
			}

			reply := f.send(t, "tg:1", tc.input)
			assert.Equal(t, tc.wantText, reply.Text)
			assert.Equal(t, tc.wantState, reply.State)
			assert.Equal(t, tc.wantKB, reply.Keyboard)
			if tc.wantCause == nil {
				assert.NoError(t, reply.Cause)
			} else {
				assert.ErrorIs(t, reply.Cause, tc.wantCause)
			}
		})
	}
}

func TestShowAnswerTwiceHitsNoActiveQuestion(t *testing.T) {
	f := newFixture(franceCorpus())

	f.send(t, "tg:1", newQuestion)
	first := f.send(t, "tg:1", showAnswer)
	assert.Equal(t, "Paris", first.Text)

	second := f.send(t, "tg:1", showAnswer)
	assert.ErrorIs(t, second.Cause, domain.ErrNoActiveQuestion)
	assert.Equal(t, domain.StateChoosing, second.State)
}

func TestNewQuestionResetsCorrectCounter(t *testing.T) {
	f := newFixture(franceCorpus())

	f.send(t, "tg:1", newQuestion)
	f.send(t, "tg:1", attempt("paris"))
	f.send(t, "tg:1", newQuestion)

	assert.Equal(t, int64(0), f.counter(t, "tg:1", domain.CounterCorrectAnswers))
	assert.Equal(t, int64(2), f.counter(t, "tg:1", domain.CounterTotalQuestions))
}

func TestCorrectCounterAccumulatesWithoutReset(t *testing.T) {
	f := newFixture(franceCorpus(), app.WithResetCorrectOnAsk(false))

	for i := 0; i < 3; i++ {
		f.send(t, "tg:1", newQuestion)
		f.send(t, "tg:1", attempt("paris"))
	}

	reply := f.send(t, "tg:1", score)
	assert.Equal(t, "Вопросов задано: 3\nПравильных ответов: 3", reply.Text)
}

func TestCancelClearsSession(t *testing.T) {
	f := newFixture(franceCorpus())
	ctx := context.Background()

	f.send(t, "tg:1", newQuestion)
	f.send(t, "tg:1", cancel)

	_, asked, err := f.sessions.GetAsked(ctx, "tg:1")
	require.NoError(t, err)
	assert.False(t, asked)
	assert.Equal(t, int64(0), f.counter(t, "tg:1", domain.CounterTotalQuestions))
	assert.Equal(t, int64(0), f.counter(t, "tg:1", domain.CounterCorrectAnswers))

	reply := f.send(t, "tg:1", start)
	assert.Equal(t, domain.StateChoosing, reply.State)
	reply = f.send(t, "tg:1", newQuestion)
	assert.Equal(t, domain.StateAnswering, reply.State)
}

func TestStateSurvivesEngineRestart(t *testing.T) {
	sessions := memory.NewSessionStore()
	questions := memory.NewQuestionRepository(franceCorpus())

	first := app.NewEngine(sessions, questions)
	_, err := first.Handle(context.Background(), "tg:1", newQuestion)
	require.NoError(t, err)

	second := app.NewEngine(sessions, questions)
	reply, err := second.Handle(context.Background(), "tg:1", attempt("paris"))
	require.NoError(t, err)
	assert.Equal(t, app.DefaultTexts().Correct, reply.Text)
}

func TestPendingQuestionWithoutStoredStateResumesAnswering(t *testing.T) {
	f := newFixture(franceCorpus())
	ctx := context.Background()
	require.NoError(t, f.sessions.PutAsked(ctx, "tg:1", domain.QuestionID("Capital of France?")))

	reply := f.send(t, "tg:1", attempt("paris"))
	assert.Equal(t, f.texts.Correct, reply.Text)
}

func TestQuestionDroppedFromCorpusIsNoActiveQuestion(t *testing.T) {
	sessions := memory.NewSessionStore()
	questions := memory.NewQuestionRepository(franceCorpus())
	engine := app.NewEngine(sessions, questions)
	ctx := context.Background()

	_, err := engine.Handle(ctx, "tg:1", newQuestion)
	require.NoError(t, err)

	other := domain.Corpus{}
	other.Add("Longest river?", "Nile.")
	require.NoError(t, questions.SaveCorpus(ctx, other))

	reply, err := engine.Handle(ctx, "tg:1", attempt("paris"))
	require.NoError(t, err)
	assert.ErrorIs(t, reply.Cause, domain.ErrNoActiveQuestion)
	assert.Equal(t, domain.StateChoosing, reply.State)
}

func TestStatesStayInAlphabet(t *testing.T) {
	corpus := franceCorpus()
	corpus.Add("Longest river?", "Nile.")
	f := newFixture(corpus)

	inputs := []domain.Command{start, cancel, newQuestion, showAnswer, score, attempt("paris"), attempt("nile"), attempt("x")}
	valid := map[domain.State]bool{domain.StateChoosing: true, domain.StateAnswering: true, domain.StateEnded: true}
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		reply := f.send(t, "tg:1", inputs[rnd.Intn(len(inputs))])
		require.True(t, valid[reply.State], "unexpected state %q", reply.State)
	}

	f.send(t, "tg:1", cancel)
	reply := f.send(t, "tg:1", start)
	assert.Equal(t, domain.StateChoosing, reply.State)
}

type failingStore struct {
	*memory.SessionStore
	failOn string
}

func (s failingStore) PutAsked(ctx context.Context, user, id string) error {
	if s.failOn == "put" {
		return fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
	}
	return s.SessionStore.PutAsked(ctx, user, id)
}

func (s failingStore) GetState(ctx context.Context, user string) (domain.State, bool, error) {
	if s.failOn == "state" {
		return "", false, fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
	}
	return s.SessionStore.GetState(ctx, user)
}

func TestStoreFailureReturnsSafeReply(t *testing.T) {
	for _, failOn := range []string{"put", "state"} {
		t.Run(failOn, func(t *testing.T) {
			store := failingStore{SessionStore: memory.NewSessionStore(), failOn: failOn}
			recorder := &countingRecorder{}
			engine := app.NewEngine(store, memory.NewQuestionRepository(franceCorpus()), app.WithRecorder(recorder))

			reply, err := engine.Handle(context.Background(), "tg:1", newQuestion)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
			assert.Equal(t, app.DefaultTexts().TryAgain, reply.Text)
			assert.Equal(t, domain.StateChoosing, reply.State)
			assert.Equal(t, []string{"new_question/error"}, recorder.seen)
		})
	}
}

func TestUnknownCommandGetsTryAgain(t *testing.T) {
	f := newFixture(franceCorpus())

	reply, err := f.engine.Handle(context.Background(), "tg:1", domain.Command{Kind: domain.CommandKind(99)})
	require.Error(t, err)
	assert.Equal(t, f.texts.TryAgain, reply.Text)
	assert.Equal(t, domain.KeyboardKeep, reply.Keyboard)
	assert.Equal(t, domain.StateChoosing, reply.State)
}

func TestEmptyCorpusFailsTurn(t *testing.T) {
	f := newFixture(domain.Corpus{})

	reply, err := f.engine.Handle(context.Background(), "tg:1", newQuestion)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
	assert.Equal(t, f.texts.TryAgain, reply.Text)
}

type countingRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *countingRecorder) ObserveTurn(command, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, command+"/"+outcome)
}
