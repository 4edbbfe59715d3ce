package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Ticket struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	Subject    string          `json:"subject"`
	Category   string          `json:"category"`
	Priority   TicketPriority  `json:"priority"`
	Status     TicketStatus    `json:"status"`
	AssigneeID *uuid.UUID      `json:"assignee_id,omitempty"`
	Messages   []TicketMessage `json:"messages,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

func (t *Ticket) Prepare() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Subject = strings.TrimSpace(t.Subject)
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	if t.Category == "" {
		t.Category = "general"
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	if t.Status == "" {
		t.Status = TicketOpen
	}
}

type TicketMessage struct {
	ID        uuid.UUID `json:"id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	FromStaff bool      `json:"from_staff"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *TicketMessage) Prepare() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Body = strings.TrimSpace(m.Body)
}

type TicketFilter struct {
	UserID     *uuid.UUID
	AssigneeID *uuid.UUID
	Status     TicketStatus
	Priority   TicketPriority
	Category   string
	Page
}
