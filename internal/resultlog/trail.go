package resultlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// listPusher is the slice of the Redis client the trail needs.
type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Trail hands entries to the background writer through a Redis list and
// falls back to writing synchronously when the queue is unreachable.
type Trail struct {
	rdb      listPusher
	queue    string
	fallback Sink
	log      zerolog.Logger
}

// NewTrail creates a Trail that enqueues onto queue.
func NewTrail(rdb listPusher, queue string, fallback Sink, log zerolog.Logger) *Trail {
	return &Trail{
		rdb:      rdb,
		queue:    queue,
		fallback: fallback,
		log:      log.With().Str("component", "result_trail").Logger(),
	}
}

// Record enqueues e. It only returns an error when both the queue and the
// fallback sink failed.
func (t *Trail) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	qErr := t.rdb.RPush(ctx, t.queue, payload).Err()
	if qErr == nil {
		return nil
	}

	t.log.Warn().Err(qErr).Str("result_id", e.ResultID).Msg("Enqueue failed, writing result log directly")
	if t.fallback == nil {
		return qErr
	}
	if err := t.fallback.Append(ctx, e); err != nil {
		return fmt.Errorf("fallback append: %w (enqueue: %v)", err, qErr)
	}
	return nil
}
