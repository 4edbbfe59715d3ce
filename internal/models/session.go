package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionConfirmed  SessionStatus = "confirmed"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionDeclined   SessionStatus = "declined"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPending:    {SessionConfirmed, SessionCancelled, SessionDeclined},
	SessionConfirmed:  {SessionInProgress, SessionCancelled},
	SessionInProgress: {SessionCompleted},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Active sessions hold their time slot.
func (s SessionStatus) Active() bool {
	return s == SessionPending || s == SessionConfirmed || s == SessionInProgress
}

// Session is a booked reading between a client and a reader.
type Session struct {
	ID              uuid.UUID     `json:"id"`
	ClientID        uuid.UUID     `json:"client_id"`
	ReaderID        uuid.UUID     `json:"reader_id"`
	Type            SessionType   `json:"type"`
	StartsAt        time.Time     `json:"starts_at"`
	DurationMinutes int           `json:"duration_minutes"`
	RatePerMinute   int64         `json:"rate_cents"`
	PriceCents      int64         `json:"price_cents"`
	FeeCents        int64         `json:"fee_cents"`
	Status          SessionStatus `json:"status"`
	Notes           string        `json:"notes,omitempty"`
	CancelledBy     *uuid.UUID    `json:"cancelled_by,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (s *Session) Prepare() {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SessionPending
	}
	s.StartsAt = s.StartsAt.UTC()
	s.Notes = strings.TrimSpace(s.Notes)
}

func (s *Session) EndsAt() time.Time {
	return s.StartsAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s *Session) IsParticipant(userID uuid.UUID) bool {
	return s.ClientID == userID || s.ReaderID == userID
}

type SessionFilter struct {
	ClientID *uuid.UUID
	ReaderID *uuid.UUID
	Status   SessionStatus
	From     *time.Time
	To       *time.Time
	Page
}
