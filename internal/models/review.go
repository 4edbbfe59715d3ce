package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ReviewStatus string

const (
	ReviewPublished ReviewStatus = "published"
	ReviewHidden    ReviewStatus = "hidden"
	ReviewFlagged   ReviewStatus = "flagged"
)

func (s ReviewStatus) Valid() bool {
	return s == ReviewPublished || s == ReviewHidden || s == ReviewFlagged
}

type Review struct {
	ID          uuid.UUID    `json:"id"`
	SessionID   uuid.UUID    `json:"session_id"`
	ClientID    uuid.UUID    `json:"client_id"`
	ReaderID    uuid.UUID    `json:"reader_id"`
	Rating      int          `json:"rating"`
	Comment     string       `json:"comment"`
	Response    *string      `json:"response,omitempty"`
	RespondedAt *time.Time   `json:"responded_at,omitempty"`
	Status      ReviewStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Review) Prepare() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Status == "" {
		r.Status = ReviewPublished
	}
}

type ReviewFilter struct {
	ReaderID *uuid.UUID
	Status   ReviewStatus
	Page
}
