// Package transport holds what every chat adapter shares: turning raw message
// text into engine commands and the reply keyboard layout.
package transport

import (
	"strings"

	"trivia-quiz-bot/internal/domain"
)

const (
	ButtonNewQuestion = "Новый вопрос"
	ButtonShowAnswer  = "Показать ответ"
	ButtonScore       = "Мой счет"
)

// Keyboard is the reply keyboard layout, row by row.
type Keyboard [][]string

// DefaultKeyboard is [[new question, show answer], [score]].
func DefaultKeyboard() Keyboard {
	return Keyboard{
		{ButtonNewQuestion, ButtonShowAnswer},
		{ButtonScore},
	}
}

// Classify maps message text to a command. Button texts and commands are
// matched case-sensitively; anything else is an answer attempt.
func Classify(text string) domain.Command {
	switch text {
	case ButtonNewQuestion:
		return domain.Command{Kind: domain.CommandNewQuestion}
	case ButtonShowAnswer:
		return domain.Command{Kind: domain.CommandShowAnswer}
	case ButtonScore:
		return domain.Command{Kind: domain.CommandScore}
	}
	if cmd, ok := slashCommand(text); ok {
		switch cmd {
		case "start":
			return domain.Command{Kind: domain.CommandStart}
		case "cancel":
			return domain.Command{Kind: domain.CommandCancel}
		}
	}
	return domain.Command{Kind: domain.CommandAttempt, Text: text}
}

// slashCommand accepts "/start", "/start@botname" and "/start payload".
func slashCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.TrimPrefix(text, "/")
	name, _, _ = strings.Cut(name, " ")
	name, _, _ = strings.Cut(name, "@")
	return name, name != ""
}
