package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"trivia-quiz-bot/internal/config"
	"trivia-quiz-bot/internal/logger"
)

// NewLoadCmd parses the quiz directory into the shared stores.
func NewLoadCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Parse quiz files and load them into Redis and the Postgres archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), *configPath, dir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "quiz directory (overrides quiz.dir)")
	return cmd
}

func runLoad(ctx context.Context, configPath, dir string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.Quiz.Dir = dir
	}
	if cfg.Quiz.Dir == "" {
		return fmt.Errorf("quiz directory not configured")
	}
	if cfg.Redis.Addr == "" && cfg.Postgres.URL == "" {
		return fmt.Errorf("neither redis nor postgres configured, nothing to load into")
	}
	log := logger.New(serviceName, cfg.Log.Level)

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	loader, err := b.corpusLoader(cfg)
	if err != nil {
		return err
	}
	corpus, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	log.WithField("questions", len(corpus)).Info("corpus loaded")
	_, err = fmt.Fprintf(out, "loaded %d questions from %s\n", len(corpus), cfg.Quiz.Dir)
	return err
}
