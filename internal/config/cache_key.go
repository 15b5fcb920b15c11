package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamQuestionsKey returns the cache key for the answer-free question payload
// built at bank generation gen. The payload is kept in canonical order;
// callers shuffle after reading.
func (r *CacheKeyStruct) ExamQuestionsKey(gen int64) string {
	return fmt.Sprintf("exam:questions:payload:%d", gen)
}

// ExamQuestionsGenerationKey returns the counter bumped on every bank mutation
func (r *CacheKeyStruct) ExamQuestionsGenerationKey() string {
	return "exam:questions:generation"
}

// RevokedTokenKey returns the cache key marking a token ID as logged out
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// ResultsMonitorChannel returns the Redis PubSub channel name for recorded results
func (r *CacheKeyStruct) ResultsMonitorChannel() string {
	return "exam:results:monitor"
}

var CacheKey = NewCacheKeyStruct()
