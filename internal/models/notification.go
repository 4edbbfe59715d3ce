package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotifySessionBooked    = "session.booked"
	NotifySessionConfirmed = "session.confirmed"
	NotifySessionDeclined  = "session.declined"
	NotifySessionStarted   = "session.started"
	NotifySessionCompleted = "session.completed"
	NotifySessionCancelled = "session.cancelled"
	NotifyMessage          = "message.received"
	NotifyGift             = "gift.received"
	NotifyReview           = "review.received"
	NotifyOrder            = "order.completed"
	NotifyProductSold      = "product.sold"
	NotifyTicketReply      = "ticket.replied"
	NotifyReaderApproved   = "reader.approved"
	NotifyAccount          = "account.updated"
)

type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (n *Notification) Prepare() {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
}

type NotificationFilter struct {
	UnreadOnly bool
	Page
}

// NotificationPreferences toggles delivery channels. Muted types are never
// delivered in-app or by email.
type NotificationPreferences struct {
	UserID       uuid.UUID `json:"user_id"`
	InAppEnabled bool      `json:"in_app_enabled"`
	EmailEnabled bool      `json:"email_enabled"`
	MutedTypes   []string  `json:"muted_types"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func DefaultPreferences(userID uuid.UUID) NotificationPreferences {
	return NotificationPreferences{
		UserID:       userID,
		InAppEnabled: true,
		EmailEnabled: true,
		MutedTypes:   []string{},
	}
}

func (p NotificationPreferences) Muted(kind string) bool {
	for _, m := range p.MutedTypes {
		if m == kind {
			return true
		}
	}
	return false
}
