package domain

import (
	"strings"

	"github.com/google/uuid"
)

// questionNamespace seeds name-based question ids so that identical question
// text always maps to the same id across loads and processes.
var questionNamespace = uuid.MustParse("6f1c2a52-7f0e-4c1b-9d5e-2b8f3f0a9c11")

// QuizRecord is a single question with its full answer text.
type QuizRecord struct {
	ID       string `json:"-"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// NewQuizRecord builds a record and derives its id from the question text.
func NewQuizRecord(question, answer string) QuizRecord {
	return QuizRecord{
		ID:       QuestionID(question),
		Question: question,
		Answer:   answer,
	}
}

// QuestionID returns the stable id for a question text.
func QuestionID(question string) string {
	return uuid.NewSHA1(questionNamespace, []byte(question)).String()
}

// ShortAnswer is the leading clause of the answer used for matching:
// text up to the first period, then up to the first opening parenthesis,
// trimmed and lowercased.
func (r QuizRecord) ShortAnswer() string {
	return canonical(r.Answer)
}

// RevealedAnswer is what the user sees on "show answer": the answer up to
// its first period.
func (r QuizRecord) RevealedAnswer() string {
	revealed, _, _ := strings.Cut(r.Answer, ".")
	return revealed
}

// Matches reports whether a free-text attempt equals the short answer. The
// attempt goes through the same canonicalization, so a user who types the
// answer together with its parenthetical clarification still matches.
func (r QuizRecord) Matches(attempt string) bool {
	short := r.ShortAnswer()
	return short != "" && canonical(attempt) == short
}

func canonical(text string) string {
	text, _, _ = strings.Cut(text, ".")
	text, _, _ = strings.Cut(text, "(")
	return strings.ToLower(strings.TrimSpace(text))
}

// Corpus maps question text to its record. Built once per load, read-only afterwards.
type Corpus map[string]QuizRecord

// Add stores a record under its question text; identical text overwrites.
func (c Corpus) Add(question, answer string) {
	c[question] = NewQuizRecord(question, answer)
}

// Merge copies every record of other into c, last write wins on identical text.
func (c Corpus) Merge(other Corpus) {
	for question, record := range other {
		c[question] = record
	}
}

// Records returns the corpus as a slice (unordered).
func (c Corpus) Records() []QuizRecord {
	records := make([]QuizRecord, 0, len(c))
	for _, record := range c {
		records = append(records, record)
	}
	return records
}

// State is the conversation state of a single user.
type State string

const (
	StateChoosing  State = "CHOOSING"
	StateAnswering State = "ANSWERING"
	// StateEnded is terminal; only the start command leaves it.
	StateEnded State = "ENDED"
)

// Counter names a per-user integer field of the session.
type Counter string

const (
	CounterTotalQuestions Counter = "total_questions"
	CounterCorrectAnswers Counter = "correct_answers"
)

// CommandKind is the closed input alphabet of the conversation engine.
type CommandKind int

const (
	CommandStart CommandKind = iota
	CommandCancel
	CommandNewQuestion
	CommandShowAnswer
	CommandScore
	CommandAttempt
)

func (k CommandKind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandCancel:
		return "cancel"
	case CommandNewQuestion:
		return "new_question"
	case CommandShowAnswer:
		return "show_answer"
	case CommandScore:
		return "score"
	case CommandAttempt:
		return "attempt"
	default:
		return "unknown"
	}
}

// Command is a classified inbound message. Text is set only for attempts.
type Command struct {
	Kind CommandKind
	Text string
}

// KeyboardHint tells the transport what to do with the reply keyboard.
type KeyboardHint int

const (
	KeyboardKeep KeyboardHint = iota
	KeyboardShow
	KeyboardRemove
)

func (h KeyboardHint) String() string {
	switch h {
	case KeyboardShow:
		return "show"
	case KeyboardRemove:
		return "remove"
	default:
		return "keep"
	}
}

// Reply is the engine's outbound instruction for a single turn.
type Reply struct {
	Text     string
	Keyboard KeyboardHint
	State    State
	// Cause is the domain error that shaped this reply, if any.
	Cause error
}

// Score is the user's counter snapshot.
type Score struct {
	TotalQuestions int64
	CorrectAnswers int64
}

// UserKey builds the canonical per-user session key for a platform.
func UserKey(platform, id string) string {
	return platform + ":" + id
}
