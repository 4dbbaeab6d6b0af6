package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"trivia-quiz-bot/internal/app"
	"trivia-quiz-bot/internal/config"
	"trivia-quiz-bot/internal/domain"
	"trivia-quiz-bot/internal/infra/memory"
	pgstore "trivia-quiz-bot/internal/infra/postgres"
	redisstore "trivia-quiz-bot/internal/infra/redis"
	"trivia-quiz-bot/internal/quizfile"
)

const serviceName = "quiz-bot"

type questionStore interface {
	app.QuestionRepository
	app.CorpusSink
}

// backends holds the process-lifetime connections built from config.
type backends struct {
	redis     *redis.Client
	pool      *pgxpool.Pool
	archive   *pgstore.CorpusStore
	sessions  app.SessionStore
	questions questionStore
}

func openBackends(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.archive = pgstore.NewCorpusStore(pool)
	}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("%w: ping redis: %v", domain.ErrStoreUnavailable, err)
		}
		sessionTTL := config.TTLDuration(cfg.Redis.TTL, 0)
		cacheTTL := config.TTLDuration(cfg.Redis.CacheTTL, 10*time.Minute)
		b.sessions = redisstore.NewSessionStore(b.redis, sessionTTL)
		b.questions = redisstore.NewQuestionRepository(b.redis, cacheTTL)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis session store")
	} else {
		b.sessions = memory.NewSessionStore()
		b.questions = memory.NewQuestionRepository(domain.Corpus{})
		log.Warn("redis not configured, sessions are kept in memory")
	}
	return b, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// corpusLoader picks the corpus source: the quiz directory when configured
// (archiving into Postgres as well), otherwise the Postgres archive.
func (b *backends) corpusLoader(cfg config.Config) (*app.CorpusLoader, error) {
	if cfg.Quiz.Dir != "" {
		loader, err := quizfile.NewLoader(quizfile.Options{
			Encoding: cfg.Quiz.Encoding,
			Strict:   cfg.Quiz.Strict,
		})
		if err != nil {
			return nil, err
		}
		sinks := []app.CorpusSink{b.questions}
		if b.archive != nil {
			sinks = append(sinks, b.archive)
		}
		return app.NewCorpusLoader(quizfile.NewDirSource(loader, cfg.Quiz.Dir), sinks...), nil
	}
	if b.archive != nil {
		return app.NewCorpusLoader(b.archive, b.questions), nil
	}
	return nil, nil
}
