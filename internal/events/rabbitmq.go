package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
)

const (
	maxConnectAttempts = 10
	maxRetryDelay      = 30 * time.Second
	publishTimeout     = 5 * time.Second
)

var ErrClosed = errors.New("broker connection closed")

// RabbitMQ publishes envelopes to a topic exchange and consumes them from a
// durable queue.
type RabbitMQ struct {
	url      string
	exchange string
	dial     func() (*amqp.Connection, *amqp.Channel, error)
	conn     *amqp.Connection
	ch       *amqp.Channel
	mu       sync.RWMutex
	closed   bool
	log      *zap.Logger
}

// Dial connects with exponential backoff and declares the exchange.
func Dial(ctx context.Context, cfg config.RabbitMQConfig, log *zap.Logger) (*RabbitMQ, error) {
	mq := &RabbitMQ{url: cfg.URL, exchange: cfg.Exchange, log: log.Named("rabbitmq")}
	mq.dial = mq.open

	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := mq.connect()
		if err == nil {
			mq.log.Info("connected", zap.Int("attempt", attempt), zap.String("exchange", cfg.Exchange))
			return mq, nil
		}
		mq.log.Warn("connect failed", zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
		if attempt == maxConnectAttempts {
			return nil, fmt.Errorf("connect after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = delay * 3 / 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (mq *RabbitMQ) connect() error {
	conn, ch, err := mq.dial()
	if err != nil {
		return err
	}
	mq.mu.Lock()
	mq.conn, mq.ch = conn, ch
	mq.mu.Unlock()
	return nil
}

// reconnect replaces the channel a publish failed on. Callers that lost the
// race find a different channel in place and reuse it. The old connection is
// closed so concurrent failures never leave one behind.
func (mq *RabbitMQ) reconnect(stale *amqp.Channel) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.closed {
		return ErrClosed
	}
	if mq.ch != stale {
		return nil
	}
	conn, ch, err := mq.dial()
	if err != nil {
		return err
	}
	if mq.conn != nil {
		_ = mq.conn.Close()
	}
	mq.conn, mq.ch = conn, ch
	mq.log.Info("reconnected")
	return nil
}

func (mq *RabbitMQ) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(mq.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(mq.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	return conn, ch, nil
}

func (mq *RabbitMQ) channel() (*amqp.Channel, error) {
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	if mq.closed || mq.ch == nil {
		return nil, ErrClosed
	}
	return mq.ch, nil
}

// Publish wraps payload in an envelope routed by eventType. A dead channel
// is reopened once before giving up.
func (mq *RabbitMQ) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ch, err := mq.channel()
	if err == nil {
		err = mq.publish(ctx, ch, eventType, env.ID, body)
	}
	if errors.Is(err, amqp.ErrClosed) {
		if rerr := mq.reconnect(ch); rerr != nil {
			return fmt.Errorf("publish %s: %w", eventType, rerr)
		}
		if ch, err = mq.channel(); err == nil {
			err = mq.publish(ctx, ch, eventType, env.ID, body)
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (mq *RabbitMQ) publish(ctx context.Context, ch *amqp.Channel, routingKey, messageID string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(ctx, mq.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Handler processes one event. Returning an error requeues the message once;
// a redelivered message that fails again is dropped.
type Handler func(ctx context.Context, env Envelope) error

// Consume binds queue to the exchange for each routing key pattern and
// dispatches deliveries to handler until ctx is done.
func (mq *RabbitMQ) Consume(ctx context.Context, queue string, keys []string, handler Handler) error {
	ch, err := mq.channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range keys {
		if err := ch.QueueBind(queue, key, mq.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	mq.log.Info("consuming", zap.String("queue", queue), zap.Strings("keys", keys))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			mq.dispatch(ctx, d, handler)
		}
	}
}

func (mq *RabbitMQ) dispatch(ctx context.Context, d amqp.Delivery, handler Handler) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		mq.log.Warn("malformed event", zap.String("routing_key", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, env); err != nil {
		mq.log.Warn("event failed", zap.String("id", env.ID), zap.String("type", env.Type),
			zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (mq *RabbitMQ) Close() {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.closed {
		return
	}
	mq.closed = true
	if mq.ch != nil {
		_ = mq.ch.Close()
	}
	if mq.conn != nil {
		_ = mq.conn.Close()
	}
	mq.log.Info("closed")
}

// NewPublisher returns a broker publisher when a URL is configured and a
// logging publisher otherwise. The returned close func is never nil.
func NewPublisher(ctx context.Context, cfg config.RabbitMQConfig, log *zap.Logger) (Publisher, func(), error) {
	if cfg.URL == "" {
		log.Info("no broker configured, events are logged only")
		return NewLogPublisher(log), func() {}, nil
	}
	mq, err := Dial(ctx, cfg, log)
	if err != nil {
		return nil, func() {}, err
	}
	return mq, mq.Close, nil
}
