package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lumen-backend/internal/config"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(OrderCompleted, OrderPayload{OrderID: "o1", TotalCents: 1200, Titles: []string{"Moon"}})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, OrderCompleted, env.Type)
	assert.False(t, env.OccurredAt.IsZero())

	var p OrderPayload
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "o1", p.OrderID)
	assert.Equal(t, int64(1200), p.TotalCents)
}

func TestNewPublisherFallsBackToLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub, closeFn, err := NewPublisher(context.Background(), config.RabbitMQConfig{Exchange: "lumen.events"}, zap.New(core))
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()

	_, ok := pub.(*LogPublisher)
	require.True(t, ok)

	require.NoError(t, pub.Publish(context.Background(), SessionBooked, SessionPayload{SessionID: "s1"}))
	entries := logs.FilterMessage("event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, SessionBooked, entries[0].ContextMap()["type"])
}

func TestReconnectOncePerDeadChannel(t *testing.T) {
	var dials atomic.Int32
	stale := &amqp.Channel{}
	mq := &RabbitMQ{ch: stale, log: zap.NewNop()}
	mq.dial = func() (*amqp.Connection, *amqp.Channel, error) {
		dials.Add(1)
		return nil, &amqp.Channel{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mq.reconnect(stale))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())
	ch, err := mq.channel()
	require.NoError(t, err)
	assert.NotSame(t, stale, ch)
}

func TestReconnectAfterCloseFails(t *testing.T) {
	mq := &RabbitMQ{closed: true, log: zap.NewNop()}
	mq.dial = func() (*amqp.Connection, *amqp.Channel, error) {
		t.Fatal("dialed after close")
		return nil, nil, nil
	}
	assert.ErrorIs(t, mq.reconnect(nil), ErrClosed)
}
