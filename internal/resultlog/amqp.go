package resultlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp.Channel the sink publishes through.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPSink publishes entries as JSON to a durable RabbitMQ queue so other
// systems (reporting, notifications) can consume them.
//
// A channel closed by the broker, or a dropped connection, is reopened on the
// next Append.
type AMQPSink struct {
	mu      sync.Mutex
	open    func() (publisher, error)
	channel publisher
	queue   string

	// release closes the connection behind open, if any.
	release func() error
}

// NewAMQPSink returns a sink publishing to the durable queue. It connects
// lazily; dial is called again whenever the connection has gone away.
func NewAMQPSink(dial func() (*amqp.Connection, error), queue string) *AMQPSink {
	var conn *amqp.Connection
	open := func() (publisher, error) {
		if conn == nil || conn.IsClosed() {
			c, err := dial()
			if err != nil {
				return nil, err
			}
			conn = c
		}
		ch, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel: %w", err)
		}
		if _, err := ch.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			ch.Close()
			return nil, fmt.Errorf("declare queue: %w", err)
		}
		return ch, nil
	}

	s := newAMQPSink(open, queue)
	s.release = func() error {
		if conn == nil {
			return nil
		}
		return conn.Close()
	}
	return s
}

func newAMQPSink(open func() (publisher, error), queue string) *AMQPSink {
	return &AMQPSink{open: open, queue: queue}
}

// Append publishes e as a persistent message.
func (s *AMQPSink) Append(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureChannel(); err != nil {
		return err
	}

	err = s.channel.PublishWithContext(ctx,
		"",      // default exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    e.ResultID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if errors.Is(err, amqp.ErrClosed) || s.channel.IsClosed() {
		s.channel = nil
	}
	return err
}

// Connect opens the channel ahead of the first Append.
func (s *AMQPSink) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureChannel()
}

// ensureChannel reopens the channel when it is missing or closed. Callers hold s.mu.
func (s *AMQPSink) ensureChannel() error {
	if s.channel != nil && !s.channel.IsClosed() {
		return nil
	}
	ch, err := s.open()
	if err != nil {
		return err
	}
	s.channel = ch
	return nil
}

// Close releases the channel and the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.channel != nil {
		errs = append(errs, s.channel.Close())
		s.channel = nil
	}
	if s.release != nil {
		errs = append(errs, s.release())
	}
	return errors.Join(errs...)
}
