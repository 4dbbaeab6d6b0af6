package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"trivia-quiz-bot/internal/domain"
	"trivia-quiz-bot/internal/transport"
)

const platform = "tg"

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api      Sender
	handler  transport.Handler
	keyboard tgbotapi.ReplyKeyboardMarkup
	log      logrus.FieldLogger
	workers  int
}

func NewBot(api Sender, handler transport.Handler, keyboard transport.Keyboard, log logrus.FieldLogger, workers int) *Bot {
	if workers <= 0 {
		workers = 1
	}
	return &Bot{
		api:      api,
		handler:  handler,
		keyboard: replyKeyboard(keyboard),
		log:      log,
		workers:  workers,
	}
}

func replyKeyboard(layout transport.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(layout))
	for _, row := range layout {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// Run dispatches updates on a fixed set of workers until updates is closed or
// ctx is done. Updates of one user always land on the same worker, so each
// user is answered in order while different users are served concurrently.
// A failing update never stops the loop.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var g errgroup.Group
	shards := make([]chan tgbotapi.Update, b.workers)
	for i := range shards {
		shard := make(chan tgbotapi.Update, 16)
		shards[i] = shard
		g.Go(func() error {
			for update := range shard {
				b.safeHandle(ctx, update)
			}
			return nil
		})
	}
	stop := func() error {
		for _, shard := range shards {
			close(shard)
		}
		return g.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			_ = stop()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return stop()
			}
			select {
			case shards[b.shard(update)] <- update:
			case <-ctx.Done():
				_ = stop()
				return ctx.Err()
			}
		}
	}
}

func (b *Bot) shard(update tgbotapi.Update) int {
	id, ok := senderID(update)
	if !ok {
		return 0
	}
	return int(uint64(id) % uint64(b.workers))
}

func (b *Bot) safeHandle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("update", update.UpdateID).Errorf("update handler panicked: %v", r)
		}
	}()
	b.HandleUpdate(ctx, update)
}

// senderID identifies the user of a message update, falling back to the chat.
func senderID(update tgbotapi.Update) (int64, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return 0, false
	}
	if msg.From != nil {
		return msg.From.ID, true
	}
	return msg.Chat.ID, true
}

// HandleUpdate answers a single text message; other updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID, ok := senderID(update)
	if !ok || update.Message.Text == "" {
		return
	}
	msg := update.Message
	user := domain.UserKey(platform, strconv.FormatInt(userID, 10))

	// Failed turns are logged by the engine; the reply is still a safe notice.
	reply, _ := b.handler.Handle(ctx, user, transport.Classify(msg.Text))

	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	switch reply.Keyboard {
	case domain.KeyboardShow:
		out.ReplyMarkup = b.keyboard
	case domain.KeyboardRemove:
		out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	if _, err := b.api.Send(out); err != nil {
		b.log.WithError(err).WithField("user", user).Warn("telegram send failed")
	}
}
