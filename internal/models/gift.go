package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gift struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url"`
	PriceCents  int64     `json:"price_cents"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g *Gift) Prepare() {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.Name = strings.TrimSpace(g.Name)
}

type GiftTransaction struct {
	ID           uuid.UUID  `json:"id"`
	GiftID       uuid.UUID  `json:"gift_id"`
	GiftName     string     `json:"gift_name"`
	SenderID     uuid.UUID  `json:"sender_id"`
	ReaderID     uuid.UUID  `json:"reader_id"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
	Message      string     `json:"message,omitempty"`
	PriceCents   int64      `json:"price_cents"`
	FeeCents     int64      `json:"fee_cents"`
	EarningCents int64      `json:"earning_cents"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (g *GiftTransaction) Prepare() {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.Message = strings.TrimSpace(g.Message)
}

type LeaderboardEntry struct {
	ReaderID    uuid.UUID `json:"reader_id"`
	DisplayName string    `json:"display_name"`
	TotalCents  int64     `json:"total_cents"`
}
