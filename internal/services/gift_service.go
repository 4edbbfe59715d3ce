package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
	"lumen-backend/internal/pricing"
)

const (
	defaultLeaderboard = 10
	maxLeaderboard     = 100
	// Rows read from Postgres when seeding the all-time board.
	leaderboardSeedLimit = 100000
)

type GiftService struct {
	gifts     GiftStore
	readers   ReaderStore
	counters  Counters
	notifier  Notifier
	publisher Publisher
	cfg       config.MarketplaceConfig
	log       *zap.Logger
	now       func() time.Time
}

func NewGiftService(gifts GiftStore, readers ReaderStore, counters Counters, notifier Notifier, publisher Publisher,
	cfg config.MarketplaceConfig, log *zap.Logger) *GiftService {
	return &GiftService{
		gifts:     gifts,
		readers:   readers,
		counters:  counters,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log.Named("gifts"),
		now:       time.Now,
	}
}

type GiftRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=60"`
	Description string `json:"description" binding:"max=500"`
	IconURL     string `json:"icon_url" binding:"omitempty,url"`
	PriceCents  int64  `json:"price_cents" binding:"required,min=1,max=1000000"`
	Active      *bool  `json:"active"`
}

type SendGiftRequest struct {
	GiftID    uuid.UUID  `json:"gift_id" binding:"required"`
	ReaderID  uuid.UUID  `json:"reader_id" binding:"required"`
	SessionID *uuid.UUID `json:"session_id"`
	Message   string     `json:"message" binding:"max=280"`
}

func (s *GiftService) Catalog(ctx context.Context, activeOnly bool) ([]models.Gift, error) {
	out, err := s.gifts.List(ctx, activeOnly)
	if out == nil {
		out = []models.Gift{}
	}
	return out, err
}

func (s *GiftService) Create(ctx context.Context, req GiftRequest) (*models.Gift, error) {
	g := &models.Gift{Active: true}
	applyGift(g, req)
	if g.Name == "" {
		return nil, invalid("name must not be blank")
	}
	if err := s.gifts.Create(ctx, g); err != nil {
		return nil, translate(err)
	}
	return g, nil
}

func (s *GiftService) Update(ctx context.Context, id uuid.UUID, req GiftRequest) (*models.Gift, error) {
	g, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	applyGift(g, req)
	if err := s.gifts.Update(ctx, g); err != nil {
		return nil, translate(err)
	}
	return g, nil
}

func (s *GiftService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Gift, error) {
	g, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Active = active
	if err := s.gifts.Update(ctx, g); err != nil {
		return nil, translate(err)
	}
	return g, nil
}

func applyGift(g *models.Gift, req GiftRequest) {
	g.Name = req.Name
	g.Description = req.Description
	g.IconURL = req.IconURL
	g.PriceCents = req.PriceCents
	if req.Active != nil {
		g.Active = *req.Active
	}
	g.Prepare()
}

func (s *GiftService) find(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	g, err := s.gifts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return g, nil
}

// Send charges the sender the gift price and credits the reader the price
// minus the platform fee.
func (s *GiftService) Send(ctx context.Context, sender *models.User, req SendGiftRequest) (*models.GiftTransaction, error) {
	if sender.ID == req.ReaderID {
		return nil, invalid("cannot send a gift to yourself")
	}
	g, err := s.find(ctx, req.GiftID)
	if err != nil {
		return nil, err
	}
	if !g.Active {
		return nil, invalid("gift %q is not available", g.Name)
	}
	reader, err := s.readers.FindByID(ctx, req.ReaderID)
	if err != nil {
		return nil, err
	}
	if reader == nil || reader.Status != models.ReaderApproved {
		return nil, fmt.Errorf("%w: reader", ErrNotFound)
	}

	earning, fee := pricing.SplitFee(g.PriceCents, s.cfg.PlatformFeeBps)
	gt := &models.GiftTransaction{
		GiftID:       g.ID,
		GiftName:     g.Name,
		SenderID:     sender.ID,
		ReaderID:     reader.UserID,
		SessionID:    req.SessionID,
		Message:      req.Message,
		PriceCents:   g.PriceCents,
		FeeCents:     fee,
		EarningCents: earning,
	}
	entries := []models.LedgerEntry{{
		UserID:      sender.ID,
		Type:        models.TxGiftPurchase,
		AmountCents: -g.PriceCents,
		Description: "gift: " + g.Name,
	}}
	if earning > 0 {
		entries = append(entries, models.LedgerEntry{
			UserID:      reader.UserID,
			Type:        models.TxGiftEarning,
			AmountCents: earning,
			Description: "gift received: " + g.Name,
		})
	}
	if err := s.gifts.Send(ctx, gt, entries); err != nil {
		return nil, translate(err)
	}
	s.log.Info("gift sent", zap.String("gift_transaction_id", gt.ID.String()),
		zap.String("reader_id", gt.ReaderID.String()), zap.Int64("price_cents", gt.PriceCents))

	if err := s.recordGift(ctx, reader.UserID, g.PriceCents); err != nil {
		s.log.Warn("leaderboard update failed", zap.Error(err))
	}
	s.notifier.Notify(ctx, reader.UserID, models.NotifyGift, "You received a gift",
		fmt.Sprintf("%s sent you %s.", sender.DisplayName, g.Name),
		obj{"gift_transaction_id": gt.ID, "gift_id": g.ID, "earning_cents": earning})
	if err := s.publisher.Publish(ctx, events.GiftSent, events.GiftPayload{
		GiftTransactionID: gt.ID.String(),
		SenderID:          sender.ID.String(),
		ReaderID:          reader.UserID.String(),
		GiftName:          g.Name,
		PriceCents:        g.PriceCents,
	}); err != nil {
		s.log.Warn("publish failed", zap.String("event", events.GiftSent), zap.Error(err))
	}
	return gt, nil
}

func (s *GiftService) Received(ctx context.Context, readerID uuid.UUID, p models.Page) (models.List[models.GiftTransaction], error) {
	items, total, err := s.gifts.Received(ctx, readerID, p)
	if err != nil {
		return models.List[models.GiftTransaction]{}, err
	}
	return models.NewList(items, total, p), nil
}

func (s *GiftService) Sent(ctx context.Context, senderID uuid.UUID, p models.Page) (models.List[models.GiftTransaction], error) {
	items, total, err := s.gifts.Sent(ctx, senderID, p)
	if err != nil {
		return models.List[models.GiftTransaction]{}, err
	}
	return models.NewList(items, total, p), nil
}

// Leaderboard ranks readers by gift value. The all-time board is served from
// Redis, seeded from the full database history when the cache is cold; week
// and month always query the database.
func (s *GiftService) Leaderboard(ctx context.Context, period string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboard
	}
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}

	var since time.Time
	switch period {
	case "", "all":
		entries, err := s.cachedLeaderboard(ctx, limit)
		if err == nil {
			return s.withNames(ctx, entries)
		}
		s.log.Warn("leaderboard cache read failed", zap.Error(err))
	case "week":
		since = s.now().AddDate(0, 0, -7)
	case "month":
		since = s.now().AddDate(0, -1, 0)
	default:
		return nil, invalid("unknown period %q", period)
	}

	entries, err := s.gifts.Leaderboard(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	return entries, nil
}

func (s *GiftService) cachedLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if err := s.ensureLeaderboard(ctx); err != nil {
		return nil, err
	}
	return s.counters.Leaderboard(ctx, limit)
}

// ensureLeaderboard seeds the board unless Redis already holds the full
// history.
func (s *GiftService) ensureLeaderboard(ctx context.Context) error {
	seeded, err := s.counters.LeaderboardSeeded(ctx)
	if err != nil || seeded {
		return err
	}
	_, err = s.RebuildLeaderboard(ctx)
	return err
}

// recordGift runs after the gift is committed. A cold board is seeded from
// the database, which already includes this gift.
func (s *GiftService) recordGift(ctx context.Context, readerID uuid.UUID, cents int64) error {
	seeded, err := s.counters.LeaderboardSeeded(ctx)
	if err != nil {
		return err
	}
	if !seeded {
		_, err = s.RebuildLeaderboard(ctx)
		return err
	}
	return s.counters.AddGift(ctx, readerID, cents)
}

// RebuildLeaderboard recomputes the all-time board from the database.
func (s *GiftService) RebuildLeaderboard(ctx context.Context) (int, error) {
	entries, err := s.gifts.Leaderboard(ctx, time.Time{}, leaderboardSeedLimit)
	if err != nil {
		return 0, err
	}
	if err := s.counters.SeedLeaderboard(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *GiftService) withNames(ctx context.Context, entries []models.LeaderboardEntry) ([]models.LeaderboardEntry, error) {
	if len(entries) == 0 {
		return []models.LeaderboardEntry{}, nil
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ReaderID
	}
	names, err := s.gifts.ReaderNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].DisplayName = names[entries[i].ReaderID]
	}
	return entries, nil
}
