package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-quiz-bot/internal/domain"
)

const (
	questionsKey = "questions"
	versionKey   = "questions:version"
)

// QuestionRepository serves the corpus from a shared Redis hash:
//
//	HSET questions {questionID} {"question": ..., "answer": ...}
//	INCR questions:version
//
// Every SaveCorpus bumps questions:version in the same transaction. Lookups
// are cached in process per version with a jittered ttl, so a reload made by
// any process invalidates every cache. Concurrent misses for the same id
// share one HGET.
type QuestionRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu           sync.RWMutex
	cache        map[string]cachedRecord
	cacheVersion string
}

type cachedRecord struct {
	record    domain.QuizRecord
	expiresAt time.Time
}

func NewQuestionRepository(client redis.UniversalClient, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedRecord),
	}
}

// SaveCorpus atomically replaces the questions hash with corpus.
func (r *QuestionRepository) SaveCorpus(ctx context.Context, corpus domain.Corpus) error {
	values := make(map[string]interface{}, len(corpus))
	for _, record := range corpus {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal question: %w", err)
		}
		values[record.ID] = string(payload)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, questionsKey)
		if len(values) > 0 {
			pipe.HSet(ctx, questionsKey, values)
		}
		pipe.Incr(ctx, versionKey)
		return nil
	})
	if err != nil {
		return unavailable("save corpus", err)
	}

	r.mu.Lock()
	r.cache = make(map[string]cachedRecord)
	r.cacheVersion = ""
	r.mu.Unlock()
	return nil
}

// Random picks uniformly with replacement using HRANDFIELD.
func (r *QuestionRepository) Random(ctx context.Context) (domain.QuizRecord, error) {
	ids, err := r.client.HRandField(ctx, questionsKey, 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.QuizRecord{}, unavailable("random question", err)
	}
	if len(ids) == 0 {
		return domain.QuizRecord{}, domain.ErrEmptyCorpus
	}
	return r.Get(ctx, ids[0])
}

// Get returns the record stored under id. The cache is only trusted for the
// corpus version currently in Redis.
func (r *QuestionRepository) Get(ctx context.Context, id string) (domain.QuizRecord, error) {
	version, err := r.version(ctx)
	if err != nil {
		return domain.QuizRecord{}, err
	}
	if record, ok := r.cached(version, id); ok {
		return record, nil
	}

	result, err, _ := r.sf.Do(version+":"+id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if record, ok := r.cached(version, id); ok {
			return record, nil
		}

		raw, err := r.client.HGet(ctx, questionsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			return domain.QuizRecord{}, domain.ErrQuestionNotFound
		}
		if err != nil {
			return domain.QuizRecord{}, unavailable("get question", err)
		}

		var record domain.QuizRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return domain.QuizRecord{}, fmt.Errorf("unmarshal question %s: %w", id, err)
		}
		record.ID = id

		r.store(version, record)
		return record, nil
	})
	if err != nil {
		return domain.QuizRecord{}, err
	}
	return result.(domain.QuizRecord), nil
}

// Len reports the number of stored questions.
func (r *QuestionRepository) Len(ctx context.Context) (int64, error) {
	n, err := r.client.HLen(ctx, questionsKey).Result()
	if err != nil {
		return 0, unavailable("count questions", err)
	}
	return n, nil
}

// version reads the corpus version; a hash saved before versioning counts as "0".
func (r *QuestionRepository) version(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, versionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", unavailable("corpus version", err)
	}
	return v, nil
}

func (r *QuestionRepository) cached(version, id string) (domain.QuizRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if version != r.cacheVersion {
		return domain.QuizRecord{}, false
	}
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.QuizRecord{}, false
	}
	return entry.record, true
}

// store caches record under version, dropping entries of any other version.
func (r *QuestionRepository) store(version string, record domain.QuizRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version != r.cacheVersion {
		r.cache = make(map[string]cachedRecord)
		r.cacheVersion = version
	}
	r.cache[record.ID] = cachedRecord{record: record, expiresAt: r.clock().Add(r.ttlWithJitter())}
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
