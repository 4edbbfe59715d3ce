package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation is the single chat thread between a client and a reader.
type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	ClientID      uuid.UUID  `json:"client_id"`
	ReaderID      uuid.UUID  `json:"reader_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (c *Conversation) Prepare() {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
}

func (c *Conversation) IsParticipant(userID uuid.UUID) bool {
	return c.ClientID == userID || c.ReaderID == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.ClientID == userID {
		return c.ReaderID
	}
	return c.ClientID
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Body           string     `json:"body"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (m *Message) Prepare() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Body = strings.TrimSpace(m.Body)
}
