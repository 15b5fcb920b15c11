package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// questionCacheTTL bounds how long payloads of superseded generations linger.
const questionCacheTTL = 10 * time.Minute

// QuestionCache keeps the answer-free bank payload in Redis.
//
// Payloads are stored per bank generation. A mutation bumps the generation,
// so a payload built from a read that raced the mutation lands under a key
// nobody asks for anymore.
type QuestionCache struct {
	rdb *redis.Client
}

// NewQuestionCache creates a new QuestionCache.
func NewQuestionCache(rdb *redis.Client) *QuestionCache {
	return &QuestionCache{rdb: rdb}
}

// Generation returns the current bank generation, 0 before the first mutation.
func (c *QuestionCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, config.CacheKey.ExamQuestionsGenerationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the payload cached for gen. ok is false on a cache miss.
func (c *QuestionCache) Get(ctx context.Context, gen int64) (questions []model.ExamQuestion, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamQuestionsKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false, err
	}
	return questions, true, nil
}

// Set stores the payload built at gen.
func (c *QuestionCache) Set(ctx context.Context, gen int64, questions []model.ExamQuestion) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamQuestionsKey(gen), raw, questionCacheTTL).Err()
}

// Bump starts a new generation after a bank mutation.
func (c *QuestionCache) Bump(ctx context.Context) error {
	return c.rdb.Incr(ctx, config.CacheKey.ExamQuestionsGenerationKey()).Err()
}
