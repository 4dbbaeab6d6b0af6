package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-quiz-bot/internal/domain"
)

const (
	fieldAsked = "asked_question"
	fieldState = "state"
)

// SessionStore keeps each user's session in one Redis hash:
//
//	HSET quiz:user:{platform}:{id} asked_question {questionID}
//	HSET quiz:user:{platform}:{id} total_questions {n} correct_answers {n} state {STATE}
//
// Every field of a user shares the same key, so cancel is a single DEL.
// A positive ttl refreshes the key expiry on each write.
type SessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewSessionStore(client redis.UniversalClient, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) key(user string) string {
	return "quiz:user:" + user
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// write runs fn in a pipeline followed by the expiry refresh.
func (s *SessionStore) write(ctx context.Context, user string, fn func(redis.Pipeliner)) error {
	key := s.key(user)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(pipe)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

func (s *SessionStore) PutAsked(ctx context.Context, user, questionID string) error {
	err := s.write(ctx, user, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, s.key(user), fieldAsked, questionID)
	})
	if err != nil {
		return unavailable("put asked", err)
	}
	return nil
}

func (s *SessionStore) GetAsked(ctx context.Context, user string) (string, bool, error) {
	id, err := s.client.HGet(ctx, s.key(user), fieldAsked).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get asked", err)
	}
	return id, true, nil
}

func (s *SessionStore) ClearAsked(ctx context.Context, user string) error {
	if err := s.client.HDel(ctx, s.key(user), fieldAsked).Err(); err != nil {
		return unavailable("clear asked", err)
	}
	return nil
}

func (s *SessionStore) IncrementCounter(ctx context.Context, user string, counter domain.Counter) (int64, error) {
	var incr *redis.IntCmd
	err := s.write(ctx, user, func(pipe redis.Pipeliner) {
		incr = pipe.HIncrBy(ctx, s.key(user), string(counter), 1)
	})
	if err != nil {
		return 0, unavailable("increment "+string(counter), err)
	}
	return incr.Val(), nil
}

func (s *SessionStore) SetCounter(ctx context.Context, user string, counter domain.Counter, value int64) error {
	err := s.write(ctx, user, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, s.key(user), string(counter), value)
	})
	if err != nil {
		return unavailable("set "+string(counter), err)
	}
	return nil
}

func (s *SessionStore) GetCounter(ctx context.Context, user string, counter domain.Counter) (int64, error) {
	n, err := s.client.HGet(ctx, s.key(user), string(counter)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("get "+string(counter), err)
	}
	return n, nil
}

func (s *SessionStore) GetState(ctx context.Context, user string) (domain.State, bool, error) {
	state, err := s.client.HGet(ctx, s.key(user), fieldState).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get state", err)
	}
	return domain.State(state), true, nil
}

func (s *SessionStore) SetState(ctx context.Context, user string, state domain.State) error {
	err := s.write(ctx, user, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, s.key(user), fieldState, string(state))
	})
	if err != nil {
		return unavailable("set state", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, user string) error {
	if err := s.client.Del(ctx, s.key(user)).Err(); err != nil {
		return unavailable("clear session", err)
	}
	return nil
}
