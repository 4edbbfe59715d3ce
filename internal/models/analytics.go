package models

import (
	"time"

	"github.com/google/uuid"
)

type Overview struct {
	From              time.Time        `json:"from"`
	To                time.Time        `json:"to"`
	UsersByRole       map[string]int64 `json:"users_by_role"`
	ReadersByStatus   map[string]int64 `json:"readers_by_status"`
	SessionsByStatus  map[string]int64 `json:"sessions_by_status"`
	RevenueByStream   map[string]int64 `json:"revenue_by_stream_cents"`
	PlatformFeesCents int64            `json:"platform_fees_cents"`
	NewUsers          int64            `json:"new_users"`
	OpenTickets       int64            `json:"open_tickets"`
}

type RevenuePoint struct {
	Period        time.Time `json:"period"`
	SessionsCents int64     `json:"sessions_cents"`
	ProductsCents int64     `json:"products_cents"`
	GiftsCents    int64     `json:"gifts_cents"`
	FeesCents     int64     `json:"fees_cents"`
}

type TopReader struct {
	ReaderID      uuid.UUID `json:"reader_id"`
	DisplayName   string    `json:"display_name"`
	EarningsCents int64     `json:"earnings_cents"`
	Sessions      int64     `json:"sessions"`
	RatingAvg     float64   `json:"rating_avg"`
}
