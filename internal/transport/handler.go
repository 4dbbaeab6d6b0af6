package transport

import (
	"context"

	"trivia-quiz-bot/internal/domain"
)

// Handler is the conversation entry point adapters dispatch to (app.Engine).
type Handler interface {
	Handle(ctx context.Context, user string, cmd domain.Command) (domain.Reply, error)
}
