package app

import "fmt"

// Texts holds every user-facing message of the conversation.
type Texts struct {
	Welcome          string
	NotStarted       string
	Tease            string
	Correct          string
	Wrong            string
	NoActiveQuestion string
	Farewell         string
	TryAgain         string
	SessionEnded     string
	ScoreFormat      string
}

// DefaultTexts returns the Russian texts of the quiz.
func DefaultTexts() Texts {
	return Texts{
		Welcome:          `Добрый день! Нажмите "Новый вопрос" для начала викторины, либо введите /cancel для завершения работы.`,
		NotStarted:       "Вы еще не начали викторину.",
		Tease:            "Даже не посмотрите на правильный ответ? )",
		Correct:          `Верно! Для следующего вопроса нажмите "Новый вопрос".`,
		Wrong:            "Неверно, попробуйте ещё раз.",
		NoActiveQuestion: "Сначала получите вопрос.",
		Farewell:         "Завершение работы викторины.",
		TryAgain:         "Что-то пошло не так, попробуйте ещё раз.",
		SessionEnded:     "Викторина завершена. Введите /start, чтобы начать заново.",
		ScoreFormat:      "Вопросов задано: %d\nПравильных ответов: %d",
	}
}

func (t Texts) score(total, correct int64) string {
	return fmt.Sprintf(t.ScoreFormat, total, correct)
}
