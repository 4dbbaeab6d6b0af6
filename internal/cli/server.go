package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"trivia-quiz-bot/internal/app"
	"trivia-quiz-bot/internal/config"
	"trivia-quiz-bot/internal/domain"
	"trivia-quiz-bot/internal/logger"
	"trivia-quiz-bot/internal/metrics"
	"trivia-quiz-bot/internal/transport"
	transporthttp "trivia-quiz-bot/internal/transport/http"
	"trivia-quiz-bot/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand that runs the bot.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Load the corpus and start the Telegram bot and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "HTTP port (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(serviceName, cfg.Log.Level)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	if err := prepareCorpus(ctx, cfg, b, m, log); err != nil {
		return err
	}

	engine := app.NewEngine(b.sessions, b.questions,
		app.WithRecorder(m),
		app.WithLogger(log),
		app.WithResetCorrectOnAsk(cfg.ResetCorrectOnQuestion()),
	)
	keyboard := transport.DefaultKeyboard()

	ws := transporthttp.NewWSHandler(engine, keyboard, log)
	server := transporthttp.NewServer(":"+finalPort, ws, registry)

	go func() {
		log.WithField("port", finalPort).Info("starting http server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
		}
	}()

	runCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()
	botDone := make(chan struct{})

	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		api.Debug = cfg.Telegram.Debug
		log.WithField("account", api.Self.UserName).Info("telegram authorised")

		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Telegram.Timeout
		if u.Timeout <= 0 {
			u.Timeout = 60
		}
		updates := api.GetUpdatesChan(u)
		defer api.StopReceivingUpdates()

		bot := telegram.NewBot(api, engine, keyboard, log, cfg.Telegram.Workers)
		go func() {
			defer close(botDone)
			if err := bot.Run(runCtx, updates); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("telegram bot stopped")
			}
		}()
	} else {
		log.Warn("telegram token not configured, only the websocket chat is served")
		close(botDone)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down...")
	}

	stopBot()
	<-botDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// prepareCorpus loads the corpus before serving traffic. Without a configured
// source the shared Redis hash must already hold questions from `load`.
func prepareCorpus(ctx context.Context, cfg config.Config, b *backends, m *metrics.Metrics, log logrus.FieldLogger) error {
	loader, err := b.corpusLoader(cfg)
	if err != nil {
		return err
	}
	if loader != nil {
		corpus, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		m.CorpusQuestions.Set(float64(len(corpus)))
		log.WithField("questions", len(corpus)).Info("corpus loaded")
		return nil
	}

	counter, ok := b.questions.(interface {
		Len(context.Context) (int64, error)
	})
	if !ok {
		return domain.ErrEmptyCorpus
	}
	n, err := counter.Len(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEmptyCorpus
	}
	m.CorpusQuestions.Set(float64(n))
	log.WithField("questions", n).Info("serving corpus already in redis")
	return nil
}
