package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/resultlog"
)

const (
	ResultLogPollTimeout  = time.Second
	ResultLogRetryBackoff = 5 * time.Second
)

// queueClient is the part of the Redis client the worker uses.
type queueClient interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ResultLogWorker consumes persist_result_log_queue and appends each entry to
// every sink. A partly delivered entry is requeued for the failed sinks only.
type ResultLogWorker struct {
	rdb     queueClient
	sinks   resultlog.Fanout
	queue   string
	backoff time.Duration
	log     zerolog.Logger
}

// NewResultLogWorker creates a new ResultLogWorker.
func NewResultLogWorker(rdb queueClient, sinks resultlog.Fanout, log zerolog.Logger) *ResultLogWorker {
	return &ResultLogWorker{
		rdb:     rdb,
		sinks:   sinks,
		queue:   config.WorkerKey.PersistResultLogQueue,
		backoff: ResultLogRetryBackoff,
		log:     log.With().Str("component", "resultlog_worker").Logger(),
	}
}

// Start begins the worker loop and blocks until ctx is cancelled. Call in a goroutine.
func (w *ResultLogWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ResultLogWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, ResultLogPollTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			w.sleep(ctx)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var item resultlog.Queued
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		// Poison message; retrying would never succeed.
		w.log.Error().Err(err).Msg("Unmarshal error, dropping entry")
		return
	}

	if !w.deliver(ctx, item) {
		w.sleep(ctx)
	}
}

// deliver writes item to its pending sinks and requeues it for those that
// failed. It reports whether every sink accepted the entry.
func (w *ResultLogWorker) deliver(ctx context.Context, item resultlog.Queued) bool {
	failed, err := w.sinks.Deliver(ctx, item.Entry, item.Pending)
	if err == nil {
		return true
	}

	w.log.Error().Err(err).
		Str("result_id", item.ResultID).
		Strs("sinks", failed).
		Msg("Append error, retrying failed sinks")

	item.Pending = failed
	raw, mErr := json.Marshal(item)
	if mErr == nil {
		mErr = w.rdb.RPush(context.WithoutCancel(ctx), w.queue, raw).Err()
	}
	if mErr != nil {
		w.log.Error().Err(mErr).Str("result_id", item.ResultID).Strs("sinks", failed).Msg("Requeue failed, entry lost")
	}
	return false
}

func (w *ResultLogWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.backoff):
	}
}

// drain writes everything still queued before shutdown. It stops at the
// first entry a sink refuses, leaving it queued for the next start.
func (w *ResultLogWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		var item resultlog.Queued
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if !w.deliver(ctx, item) {
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining entries")
	}
}
