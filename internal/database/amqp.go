package database

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
)

// NewAMQPDialer returns a function that dials RabbitMQ, or nil when AMQP_URL
// is unset so callers can treat the broker as optional. The result log sink
// calls it again after the connection drops.
func NewAMQPDialer(cfg *config.Config, log zerolog.Logger) func() (*amqp.Connection, error) {
	if cfg.AMQPURL == "" {
		return nil
	}

	return func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}

		log.Info().
			Str("queue", cfg.AMQPResultQueue).
			Msg("RabbitMQ connected")

		return conn, nil
	}
}
