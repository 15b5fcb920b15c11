package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ResultEvent is broadcast to live monitors whenever a result is recorded.
type ResultEvent struct {
	ResultID       string           `json:"resultId"`
	Email          string           `json:"email"`
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	Percentage     model.Percentage `json:"percentage"`
	TimeSpent      string           `json:"timeSpent"`
	RecordedAt     string           `json:"recordedAt"`
}

// ResultFeed publishes and subscribes to recorded results over Redis Pub/Sub.
type ResultFeed struct {
	rdb *redis.Client
}

// NewResultFeed creates a new ResultFeed.
func NewResultFeed(rdb *redis.Client) *ResultFeed {
	return &ResultFeed{rdb: rdb}
}

// Publish broadcasts ev to every subscriber.
func (f *ResultFeed) Publish(ctx context.Context, ev ResultEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, config.CacheKey.ResultsMonitorChannel(), payload).Err()
}

// Subscribe opens a subscription and streams raw event payloads until ctx is
// cancelled or stop is called.
func (f *ResultFeed) Subscribe(ctx context.Context) (<-chan string, func() error, error) {
	pubsub := f.rdb.Subscribe(ctx, config.CacheKey.ResultsMonitorChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close, nil
}
