package services

import (
	"context"
	"time"

	"lumen-backend/internal/models"
)

const (
	maxAnalyticsRange = 366 * 24 * time.Hour
	defaultTopReaders = 10
	maxTopReaders     = 100
)

type AnalyticsService struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store, now: time.Now}
}

func (s *AnalyticsService) span(from, to time.Time) (time.Time, time.Time, error) {
	from, to, err := defaultRange(from, to, s.now(), 30*24*time.Hour)
	if err != nil {
		return from, to, err
	}
	if to.Sub(from) > maxAnalyticsRange {
		return from, to, invalid("range must not exceed 366 days")
	}
	return from, to, nil
}

func (s *AnalyticsService) Overview(ctx context.Context, from, to time.Time) (*models.Overview, error) {
	from, to, err := s.span(from, to)
	if err != nil {
		return nil, err
	}
	return s.store.Overview(ctx, from, to)
}

// Revenue buckets gross revenue per stream by day, week or month.
func (s *AnalyticsService) Revenue(ctx context.Context, from, to time.Time, interval string) ([]models.RevenuePoint, error) {
	if interval == "" {
		interval = "day"
	}
	switch interval {
	case "day", "week", "month":
	default:
		return nil, invalid("interval must be day, week or month")
	}
	from, to, err := s.span(from, to)
	if err != nil {
		return nil, err
	}
	out, err := s.store.Revenue(ctx, from, to, interval)
	if out == nil {
		out = []models.RevenuePoint{}
	}
	return out, err
}

func (s *AnalyticsService) TopReaders(ctx context.Context, from, to time.Time, limit int) ([]models.TopReader, error) {
	if limit <= 0 {
		limit = defaultTopReaders
	}
	if limit > maxTopReaders {
		limit = maxTopReaders
	}
	from, to, err := s.span(from, to)
	if err != nil {
		return nil, err
	}
	out, err := s.store.TopReaders(ctx, from, to, limit)
	if out == nil {
		out = []models.TopReader{}
	}
	return out, err
}
