package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lumen-backend/internal/config"
	"lumen-backend/internal/models"
	"lumen-backend/internal/scheduling"
)

const maxSlotRange = 31 * 24 * time.Hour

type AvailabilityService struct {
	store    AvailabilityStore
	readers  ReaderStore
	sessions SessionStore
	cfg      config.MarketplaceConfig
	now      func() time.Time
}

func NewAvailabilityService(store AvailabilityStore, readers ReaderStore, sessions SessionStore, cfg config.MarketplaceConfig) *AvailabilityService {
	return &AvailabilityService{store: store, readers: readers, sessions: sessions, cfg: cfg, now: time.Now}
}

type RuleRequest struct {
	Weekday      int      `json:"weekday" binding:"min=0,max=6"`
	StartTime    string   `json:"start_time" binding:"required"`
	EndTime      string   `json:"end_time" binding:"required"`
	SessionTypes []string `json:"session_types"`
}

type ExceptionRequest struct {
	StartsAt time.Time                `json:"starts_at" binding:"required"`
	EndsAt   time.Time                `json:"ends_at" binding:"required"`
	Kind     scheduling.ExceptionKind `json:"kind" binding:"required,oneof=blocked extra"`
	Reason   string                   `json:"reason" binding:"max=200"`
}

type SlotQuery struct {
	From        time.Time
	To          time.Time
	SessionType models.SessionType
	Timezone    string
	View        string
}

type SlotsResult struct {
	ReaderID    uuid.UUID             `json:"reader_id"`
	Timezone    string                `json:"timezone"`
	SlotMinutes int                   `json:"slot_minutes"`
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	Slots       []scheduling.Interval `json:"slots"`
	Days        []scheduling.Day      `json:"days,omitempty"`
}

func (s *AvailabilityService) Rules(ctx context.Context, readerID uuid.UUID) ([]models.AvailabilityRule, error) {
	rules, err := s.store.Rules(ctx, readerID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []models.AvailabilityRule{}
	}
	return rules, nil
}

// ReplaceRules validates the whole weekly pattern, including overlaps between
// rules on the same or adjacent days, and stores it.
func (s *AvailabilityService) ReplaceRules(ctx context.Context, readerID uuid.UUID, reqs []RuleRequest) ([]models.AvailabilityRule, error) {
	if len(reqs) > 100 {
		return nil, invalid("at most 100 rules")
	}
	rules := make([]models.AvailabilityRule, len(reqs))
	parsed := make([]scheduling.Rule, len(reqs))
	for i, r := range reqs {
		for _, t := range r.SessionTypes {
			if !models.SessionType(t).Valid() {
				return nil, invalid("rule %d: unknown session type %q", i, t)
			}
		}
		rules[i] = models.AvailabilityRule{
			ReaderID:     readerID,
			Weekday:      r.Weekday,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			SessionTypes: r.SessionTypes,
		}
		rule, err := rules[i].ToRule()
		if err != nil {
			return nil, invalid("rule %d: %v", i, err)
		}
		// Store the canonical HH:MM form.
		rules[i].StartTime, rules[i].EndTime = rule.Start.String(), rule.End.String()
		parsed[i] = rule
	}
	if err := scheduling.ValidateRules(parsed); err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.store.ReplaceRules(ctx, readerID, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *AvailabilityService) AddException(ctx context.Context, readerID uuid.UUID, req ExceptionRequest) (*models.AvailabilityException, error) {
	if !req.StartsAt.Before(req.EndsAt) {
		return nil, invalid("starts_at must be before ends_at")
	}
	if req.Kind != scheduling.ExceptionBlocked && req.Kind != scheduling.ExceptionExtra {
		return nil, invalid("kind must be blocked or extra")
	}
	e := &models.AvailabilityException{
		ReaderID: readerID,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Kind:     req.Kind,
		Reason:   req.Reason,
	}
	if err := s.store.AddException(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *AvailabilityService) Exceptions(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.AvailabilityException, error) {
	if to.IsZero() {
		from = s.now()
		to = from.AddDate(0, 0, s.cfg.MaxBookingDays)
	}
	out, err := s.store.Exceptions(ctx, readerID, from, to)
	if out == nil {
		out = []models.AvailabilityException{}
	}
	return out, err
}

func (s *AvailabilityService) DeleteException(ctx context.Context, readerID, id uuid.UUID) error {
	return translate(s.store.DeleteException(ctx, readerID, id))
}

// windows returns the reader's free time in [from, to): weekly rules plus
// extra exceptions, minus blocked exceptions and slot-holding sessions.
func (s *AvailabilityService) windows(ctx context.Context, reader *models.ReaderProfile, from, to time.Time, sessionType models.SessionType) ([]scheduling.Interval, error) {
	loc, err := reader.Location()
	if err != nil {
		return nil, fmt.Errorf("reader timezone: %w", err)
	}
	stored, err := s.store.Rules(ctx, reader.UserID)
	if err != nil {
		return nil, err
	}
	rules := make([]scheduling.Rule, 0, len(stored))
	for _, r := range stored {
		rule, err := r.ToRule()
		if err != nil {
			continue
		}
		rules = append(rules, rule)
	}
	stEx, err := s.store.Exceptions(ctx, reader.UserID, from, to)
	if err != nil {
		return nil, err
	}
	exceptions := make([]scheduling.Exception, len(stEx))
	for i, e := range stEx {
		exceptions[i] = e.ToException()
	}

	free := scheduling.Windows(rules, exceptions, loc, from, to, string(sessionType))

	booked, err := s.sessions.ActiveBetween(ctx, reader.UserID, from, to)
	if err != nil {
		return nil, err
	}
	busy := make([]scheduling.Interval, len(booked))
	for i, b := range booked {
		busy[i] = scheduling.Interval{Start: b.StartsAt, End: b.EndsAt()}
	}
	return scheduling.Subtract(free, busy), nil
}

// Slots lists bookable slots. With view=week the range becomes the Sunday to
// Saturday week containing From in the display timezone and the slots are
// also grouped per day.
func (s *AvailabilityService) Slots(ctx context.Context, readerID uuid.UUID, q SlotQuery) (*SlotsResult, error) {
	reader, err := s.readers.FindByID(ctx, readerID)
	if err != nil {
		return nil, err
	}
	if reader == nil || reader.Status != models.ReaderApproved {
		return nil, ErrNotFound
	}
	if q.SessionType != "" {
		if !q.SessionType.Valid() {
			return nil, invalid("unknown session_type %q", q.SessionType)
		}
		if !reader.Offers(q.SessionType) {
			return nil, invalid("reader does not offer %s sessions", q.SessionType)
		}
	}

	tz := q.Timezone
	if tz == "" {
		tz = reader.Timezone
	}
	display, err := time.LoadLocation(tz)
	if err != nil {
		return nil, invalid("unknown timezone %q", tz)
	}

	now := s.now()
	from, to := q.From, q.To
	if from.IsZero() {
		from = now
	}
	if q.View == "week" {
		from = scheduling.WeekStart(from, display)
		to = from.AddDate(0, 0, 7)
	} else if q.View != "" {
		return nil, invalid("unknown view %q", q.View)
	}
	if to.IsZero() {
		to = from.Add(7 * 24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, invalid("from must be before to")
	}
	if to.Sub(from) > maxSlotRange {
		return nil, invalid("range must not exceed 31 days")
	}

	// Nothing in the past or beyond the booking horizon is bookable.
	lo, hi := from, to
	if lo.Before(now) {
		lo = now
	}
	if horizon := now.AddDate(0, 0, s.cfg.MaxBookingDays); hi.After(horizon) {
		hi = horizon
	}

	var slots []scheduling.Interval
	if lo.Before(hi) {
		free, err := s.windows(ctx, reader, lo, hi, q.SessionType)
		if err != nil {
			return nil, err
		}
		slotLen := time.Duration(s.cfg.SlotMinutes) * time.Minute
		loc, err := reader.Location()
		if err != nil {
			return nil, fmt.Errorf("reader timezone: %w", err)
		}
		slots = scheduling.Slots(alignWindows(free, slotLen, loc), slotLen)
	}
	if slots == nil {
		slots = []scheduling.Interval{}
	}

	res := &SlotsResult{
		ReaderID:    readerID,
		Timezone:    display.String(),
		SlotMinutes: s.cfg.SlotMinutes,
		From:        from.UTC(),
		To:          to.UTC(),
		Slots:       slots,
	}
	if q.View == "week" {
		res.Days = scheduling.GroupByDay(slots, from, display)
	}
	return res, nil
}

// alignWindows moves each window start up to the next size boundary of the
// reader's local clock so slots begin on round times even when a window was
// cut at "now".
func alignWindows(in []scheduling.Interval, size time.Duration, loc *time.Location) []scheduling.Interval {
	out := make([]scheduling.Interval, 0, len(in))
	for _, w := range in {
		w.Start = scheduling.AlignUp(w.Start, size, loc)
		if w.Start.Before(w.End) {
			out = append(out, w)
		}
	}
	return out
}
