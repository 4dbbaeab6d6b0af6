package domain

import "errors"

var (
	// ErrMalformedQuiz is returned in strict mode when an answer block has no preceding question.
	ErrMalformedQuiz = errors.New("malformed quiz: answer without question")
	// ErrEmptyCorpus indicates the loaded corpus has no records.
	ErrEmptyCorpus = errors.New("quiz corpus is empty")
	// ErrUnsupportedEncoding indicates the configured charset is unknown.
	ErrUnsupportedEncoding = errors.New("unsupported quiz encoding")
	// ErrNoActiveQuestion is returned when an answer-dependent event arrives with no asked question.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrQuestionNotFound indicates a stored question id is not in the corpus.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrStoreUnavailable wraps any failure of the persistence backend.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionEnded is returned for input after the session was cancelled.
	ErrSessionEnded = errors.New("session ended")
)
