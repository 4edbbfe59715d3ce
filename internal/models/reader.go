package models

import (
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ReaderStatus string

const (
	ReaderPending   ReaderStatus = "pending"
	ReaderApproved  ReaderStatus = "approved"
	ReaderSuspended ReaderStatus = "suspended"
)

type SessionType string

const (
	SessionChat  SessionType = "chat"
	SessionVoice SessionType = "voice"
	SessionVideo SessionType = "video"
)

var SessionTypes = []SessionType{SessionChat, SessionVoice, SessionVideo}

func (t SessionType) Valid() bool {
	switch t {
	case SessionChat, SessionVoice, SessionVideo:
		return true
	}
	return false
}

// ReaderProfile is keyed by the reader's user id. Rates are cents per minute;
// a zero rate means the session type is not offered.
type ReaderProfile struct {
	UserID      uuid.UUID    `json:"id"`
	DisplayName string       `json:"display_name"`
	Bio         string       `json:"bio"`
	Specialties []string     `json:"specialties"`
	ChatRate    int64        `json:"chat_rate_cents"`
	VoiceRate   int64        `json:"voice_rate_cents"`
	VideoRate   int64        `json:"video_rate_cents"`
	Timezone    string       `json:"timezone"`
	Status      ReaderStatus `json:"status"`
	RatingAvg   float64      `json:"rating_avg"`
	ReviewCount int          `json:"review_count"`
	Online      bool         `json:"online"`
	ApprovedAt  *time.Time   `json:"approved_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *ReaderProfile) Prepare() {
	r.DisplayName = html.EscapeString(strings.TrimSpace(r.DisplayName))
	r.Bio = strings.TrimSpace(r.Bio)
	if r.Timezone == "" {
		r.Timezone = "UTC"
	}
	if r.Status == "" {
		r.Status = ReaderPending
	}
	specialties := make([]string, 0, len(r.Specialties))
	for _, s := range r.Specialties {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			specialties = append(specialties, s)
		}
	}
	r.Specialties = specialties
}

func (r *ReaderProfile) Rate(t SessionType) int64 {
	switch t {
	case SessionChat:
		return r.ChatRate
	case SessionVoice:
		return r.VoiceRate
	case SessionVideo:
		return r.VideoRate
	}
	return 0
}

func (r *ReaderProfile) Offers(t SessionType) bool {
	return r.Rate(t) > 0
}

// Location resolves the reader's IANA timezone.
func (r *ReaderProfile) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// ReaderFilter narrows the public reader listing. Every set field is an
// additional AND condition.
type ReaderFilter struct {
	MinRating   *float64
	MaxPrice    *int64
	SessionType SessionType
	Specialty   string
	Online      *bool
	Query       string
	Status      ReaderStatus
	Sort        string
	Page
}

const (
	SortRating  = "rating"
	SortPrice   = "price"
	SortReviews = "reviews"
	SortNewest  = "newest"
)
