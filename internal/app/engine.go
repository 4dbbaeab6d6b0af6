package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
	"trivia-quiz-bot/internal/domain"
)

const (
	eventStart  = "start"
	eventCancel = "cancel"
	eventAsk    = "ask"
	eventReveal = "reveal"
	eventSolve  = "solve"
)

var allStates = []string{
	string(domain.StateChoosing),
	string(domain.StateAnswering),
	string(domain.StateEnded),
}

// transitions is the conversation table. Inputs that keep the state (score,
// teasing refusal, wrong attempt) never fire an event.
var transitions = fsm.Events{
	{Name: eventStart, Src: allStates, Dst: string(domain.StateChoosing)},
	{Name: eventCancel, Src: allStates, Dst: string(domain.StateEnded)},
	{Name: eventAsk, Src: []string{string(domain.StateChoosing)}, Dst: string(domain.StateAnswering)},
	{Name: eventReveal, Src: []string{string(domain.StateAnswering)}, Dst: string(domain.StateChoosing)},
	{Name: eventSolve, Src: []string{string(domain.StateAnswering)}, Dst: string(domain.StateChoosing)},
}

// Engine drives the quiz conversation of every user. It holds no per-user
// state itself; everything lives in the SessionStore.
type Engine struct {
	sessions  SessionStore
	questions QuestionRepository
	texts     Texts
	recorder  Recorder
	log       logrus.FieldLogger

	resetCorrectOnAsk bool
}

// Option customizes an Engine.
type Option func(*Engine)

func WithTexts(texts Texts) Option {
	return func(e *Engine) { e.texts = texts }
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithResetCorrectOnAsk controls whether a new question zeroes the correct counter.
func WithResetCorrectOnAsk(reset bool) Option {
	return func(e *Engine) { e.resetCorrectOnAsk = reset }
}

func NewEngine(sessions SessionStore, questions QuestionRepository, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		sessions:          sessions,
		questions:         questions,
		texts:             DefaultTexts(),
		recorder:          noopRecorder{},
		log:               discard,
		resetCorrectOnAsk: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turn carries the per-message context through the handlers.
type turn struct {
	user    string
	machine *fsm.FSM
	initial domain.State
	stored  bool
}

func (t *turn) state() domain.State {
	return domain.State(t.machine.Current())
}

// Handle processes one inbound command for user. Domain conditions become a
// reply whose Cause is set; a non-nil error means the turn failed (store
// outage and the like) and the returned reply is a generic retry notice.
func (e *Engine) Handle(ctx context.Context, user string, cmd domain.Command) (domain.Reply, error) {
	started := time.Now()

	reply, err := e.handle(ctx, user, cmd)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case reply.Cause != nil:
		outcome = "rejected"
	}
	e.recorder.ObserveTurn(cmd.Kind.String(), outcome, time.Since(started))

	entry := e.log.WithFields(logrus.Fields{
		"user":    user,
		"command": cmd.Kind.String(),
		"state":   reply.State,
	})
	if err != nil {
		entry.WithError(err).Error("turn failed")
	} else {
		entry.Debug("turn handled")
	}
	return reply, err
}

func (e *Engine) handle(ctx context.Context, user string, cmd domain.Command) (domain.Reply, error) {
	t, err := e.begin(ctx, user)
	if err != nil {
		return e.failure(domain.StateChoosing), err
	}

	var reply domain.Reply
	switch cmd.Kind {
	case domain.CommandStart:
		reply, err = e.start(ctx, t)
	case domain.CommandCancel:
		reply, err = e.cancel(ctx, t)
	default:
		if t.state() == domain.StateEnded {
			return domain.Reply{
				Text:     e.texts.SessionEnded,
				Keyboard: domain.KeyboardRemove,
				State:    domain.StateEnded,
				Cause:    domain.ErrSessionEnded,
			}, nil
		}
		switch cmd.Kind {
		case domain.CommandNewQuestion:
			reply, err = e.newQuestion(ctx, t)
		case domain.CommandShowAnswer:
			reply, err = e.showAnswer(ctx, t)
		case domain.CommandScore:
			reply, err = e.score(ctx, t)
		case domain.CommandAttempt:
			reply, err = e.attempt(ctx, t, cmd.Text)
		default:
			return e.failure(t.state()), fmt.Errorf("unknown command kind %d", cmd.Kind)
		}
	}
	if err != nil {
		return e.failure(t.initial), err
	}

	if err := e.persist(ctx, t); err != nil {
		return e.failure(t.initial), err
	}
	reply.State = t.state()
	return reply, nil
}

// begin restores the user's state. A session with no stored state is a fresh
// implicit session, unless a question is pending, in which case the user was
// answering.
func (e *Engine) begin(ctx context.Context, user string) (*turn, error) {
	state, ok, err := e.sessions.GetState(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		state = domain.StateChoosing
		if _, asked, err := e.sessions.GetAsked(ctx, user); err != nil {
			return nil, fmt.Errorf("load asked question: %w", err)
		} else if asked {
			state = domain.StateAnswering
		}
	}
	return &turn{
		user:    user,
		machine: fsm.NewFSM(string(state), transitions, nil),
		initial: state,
		stored:  ok,
	}, nil
}

func (e *Engine) persist(ctx context.Context, t *turn) error {
	if t.stored && t.state() == t.initial {
		return nil
	}
	if err := e.sessions.SetState(ctx, t.user, t.state()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (e *Engine) fire(ctx context.Context, t *turn, event string) error {
	if err := t.machine.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		return fmt.Errorf("%s from %s: %w", event, t.state(), err)
	}
	return nil
}

func (e *Engine) start(ctx context.Context, t *turn) (domain.Reply, error) {
	if err := e.fire(ctx, t, eventStart); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: e.texts.Welcome, Keyboard: domain.KeyboardShow}, nil
}

func (e *Engine) cancel(ctx context.Context, t *turn) (domain.Reply, error) {
	if err := e.sessions.Clear(ctx, t.user); err != nil {
		return domain.Reply{}, fmt.Errorf("clear session: %w", err)
	}
	if err := e.fire(ctx, t, eventCancel); err != nil {
		return domain.Reply{}, err
	}
	// Clear wiped the state field too; make sure ENDED is written back.
	t.stored = false
	return domain.Reply{Text: e.texts.Farewell, Keyboard: domain.KeyboardRemove}, nil
}

func (e *Engine) newQuestion(ctx context.Context, t *turn) (domain.Reply, error) {
	if t.state() == domain.StateAnswering {
		return domain.Reply{Text: e.texts.Tease, Keyboard: domain.KeyboardShow}, nil
	}

	record, err := e.questions.Random(ctx)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("pick question: %w", err)
	}
	if err := e.sessions.PutAsked(ctx, t.user, record.ID); err != nil {
		return domain.Reply{}, fmt.Errorf("save asked question: %w", err)
	}
	if _, err := e.sessions.IncrementCounter(ctx, t.user, domain.CounterTotalQuestions); err != nil {
		return domain.Reply{}, fmt.Errorf("count question: %w", err)
	}
	if e.resetCorrectOnAsk {
		if err := e.sessions.SetCounter(ctx, t.user, domain.CounterCorrectAnswers, 0); err != nil {
			return domain.Reply{}, fmt.Errorf("reset correct answers: %w", err)
		}
	}
	if err := e.fire(ctx, t, eventAsk); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: record.Question, Keyboard: domain.KeyboardShow}, nil
}

func (e *Engine) showAnswer(ctx context.Context, t *turn) (domain.Reply, error) {
	if t.state() == domain.StateChoosing {
		return domain.Reply{
			Text:     e.texts.NotStarted,
			Keyboard: domain.KeyboardShow,
			Cause:    domain.ErrNoActiveQuestion,
		}, nil
	}

	record, err := e.askedRecord(ctx, t)
	if errors.Is(err, domain.ErrNoActiveQuestion) {
		return e.noActiveQuestion(ctx, t)
	}
	if err != nil {
		return domain.Reply{}, err
	}
	if err := e.sessions.ClearAsked(ctx, t.user); err != nil {
		return domain.Reply{}, fmt.Errorf("clear asked question: %w", err)
	}
	if err := e.fire(ctx, t, eventReveal); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: record.RevealedAnswer(), Keyboard: domain.KeyboardShow}, nil
}

func (e *Engine) score(ctx context.Context, t *turn) (domain.Reply, error) {
	total, err := e.sessions.GetCounter(ctx, t.user, domain.CounterTotalQuestions)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("read total questions: %w", err)
	}
	correct, err := e.sessions.GetCounter(ctx, t.user, domain.CounterCorrectAnswers)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("read correct answers: %w", err)
	}
	return domain.Reply{Text: e.texts.score(total, correct), Keyboard: domain.KeyboardShow}, nil
}

func (e *Engine) attempt(ctx context.Context, t *turn, text string) (domain.Reply, error) {
	if t.state() == domain.StateChoosing {
		return domain.Reply{
			Text:     e.texts.NoActiveQuestion,
			Keyboard: domain.KeyboardShow,
			Cause:    domain.ErrNoActiveQuestion,
		}, nil
	}

	record, err := e.askedRecord(ctx, t)
	if errors.Is(err, domain.ErrNoActiveQuestion) {
		return e.noActiveQuestion(ctx, t)
	}
	if err != nil {
		return domain.Reply{}, err
	}

	if !record.Matches(text) {
		return domain.Reply{Text: e.texts.Wrong, Keyboard: domain.KeyboardKeep}, nil
	}
	if _, err := e.sessions.IncrementCounter(ctx, t.user, domain.CounterCorrectAnswers); err != nil {
		return domain.Reply{}, fmt.Errorf("count correct answer: %w", err)
	}
	if err := e.sessions.ClearAsked(ctx, t.user); err != nil {
		return domain.Reply{}, fmt.Errorf("clear asked question: %w", err)
	}
	if err := e.fire(ctx, t, eventSolve); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: e.texts.Correct, Keyboard: domain.KeyboardShow}, nil
}

// askedRecord resolves the pending question. A missing pointer, or one whose
// question left the corpus after a reload, is ErrNoActiveQuestion.
func (e *Engine) askedRecord(ctx context.Context, t *turn) (domain.QuizRecord, error) {
	id, ok, err := e.sessions.GetAsked(ctx, t.user)
	if err != nil {
		return domain.QuizRecord{}, fmt.Errorf("load asked question: %w", err)
	}
	if !ok {
		return domain.QuizRecord{}, domain.ErrNoActiveQuestion
	}
	record, err := e.questions.Get(ctx, id)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return domain.QuizRecord{}, fmt.Errorf("%w: %v", domain.ErrNoActiveQuestion, err)
	}
	if err != nil {
		return domain.QuizRecord{}, fmt.Errorf("load question %s: %w", id, err)
	}
	return record, nil
}

// noActiveQuestion repairs an ANSWERING session that has nothing to answer.
func (e *Engine) noActiveQuestion(ctx context.Context, t *turn) (domain.Reply, error) {
	if err := e.sessions.ClearAsked(ctx, t.user); err != nil {
		return domain.Reply{}, fmt.Errorf("clear asked question: %w", err)
	}
	if err := e.fire(ctx, t, eventReveal); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{
		Text:     e.texts.NoActiveQuestion,
		Keyboard: domain.KeyboardShow,
		Cause:    domain.ErrNoActiveQuestion,
	}, nil
}

func (e *Engine) failure(state domain.State) domain.Reply {
	return domain.Reply{Text: e.texts.TryAgain, Keyboard: domain.KeyboardKeep, State: state}
}
