package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lumen-backend/internal/scheduling"
)

// AvailabilityRule is a stored weekly window in the reader's local time.
type AvailabilityRule struct {
	ID           uuid.UUID `json:"id"`
	ReaderID     uuid.UUID `json:"reader_id"`
	Weekday      int       `json:"weekday"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SessionTypes []string  `json:"session_types"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *AvailabilityRule) Prepare() {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SessionTypes == nil {
		r.SessionTypes = []string{}
	}
}

func (r AvailabilityRule) ToRule() (scheduling.Rule, error) {
	start, err := scheduling.ParseClock(r.StartTime)
	if err != nil {
		return scheduling.Rule{}, fmt.Errorf("start_time %q: %w", r.StartTime, err)
	}
	end, err := scheduling.ParseClock(r.EndTime)
	if err != nil {
		return scheduling.Rule{}, fmt.Errorf("end_time %q: %w", r.EndTime, err)
	}
	rule := scheduling.Rule{
		Weekday:      time.Weekday(r.Weekday),
		Start:        start,
		End:          end,
		SessionTypes: r.SessionTypes,
	}
	return rule, rule.Validate()
}

type ExceptionKind = scheduling.ExceptionKind

// AvailabilityException is an absolute interval that blocks or adds time.
type AvailabilityException struct {
	ID        uuid.UUID     `json:"id"`
	ReaderID  uuid.UUID     `json:"reader_id"`
	StartsAt  time.Time     `json:"starts_at"`
	EndsAt    time.Time     `json:"ends_at"`
	Kind      ExceptionKind `json:"kind"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func (e *AvailabilityException) Prepare() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.StartsAt = e.StartsAt.UTC()
	e.EndsAt = e.EndsAt.UTC()
}

func (e AvailabilityException) ToException() scheduling.Exception {
	return scheduling.Exception{
		Interval: scheduling.Interval{Start: e.StartsAt, End: e.EndsAt},
		Kind:     e.Kind,
	}
}
