// Package events carries domain events from the API to background workers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Event types. The type doubles as the routing key.
const (
	SessionBooked     = "session.booked"
	SessionConfirmed  = "session.confirmed"
	SessionDeclined   = "session.declined"
	SessionStarted    = "session.started"
	SessionCompleted  = "session.completed"
	SessionCancelled  = "session.cancelled"
	OrderCompleted    = "order.completed"
	GiftSent          = "gift.sent"
	ReviewCreated     = "review.created"
	TicketReplied     = "ticket.replied"
	ReaderApproved    = "reader.approved"
	NotificationAdded = "notification.created"
)

// Envelope is the wire format of every event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         ksuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// LogPublisher records events in the log instead of a broker. It is used when
// no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	p.log.Info("event", zap.String("id", env.ID), zap.String("type", env.Type), zap.ByteString("payload", env.Payload))
	return nil
}

// Payloads consumed by the email worker.

type SessionPayload struct {
	SessionID  string    `json:"session_id"`
	ClientID   string    `json:"client_id"`
	ReaderID   string    `json:"reader_id"`
	Type       string    `json:"type"`
	StartsAt   time.Time `json:"starts_at"`
	Minutes    int       `json:"duration_minutes"`
	PriceCents int64     `json:"price_cents"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actor_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

type OrderPayload struct {
	OrderID    string   `json:"order_id"`
	UserID     string   `json:"user_id"`
	TotalCents int64    `json:"total_cents"`
	Titles     []string `json:"titles"`
}

type TicketPayload struct {
	TicketID string `json:"ticket_id"`
	UserID   string `json:"user_id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

type GiftPayload struct {
	GiftTransactionID string `json:"gift_transaction_id"`
	SenderID          string `json:"sender_id"`
	ReaderID          string `json:"reader_id"`
	GiftName          string `json:"gift_name"`
	PriceCents        int64  `json:"price_cents"`
}
