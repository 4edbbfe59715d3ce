package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/models"
)

const (
	recentTransactions = 20
	maxDepositCents    = 1_000_000
)

type WalletService struct {
	wallet   WalletStore
	users    UserStore
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewWalletService(wallet WalletStore, users UserStore, notifier Notifier, log *zap.Logger) *WalletService {
	return &WalletService{wallet: wallet, users: users, notifier: notifier, log: log.Named("wallet"), now: time.Now}
}

type DepositRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,min=100"`
	ExternalRef string `json:"external_ref" binding:"required,max=200"`
}

type PayoutRequest struct {
	ReaderID    uuid.UUID `json:"reader_id" binding:"required"`
	AmountCents int64     `json:"amount_cents" binding:"required,min=1"`
	ExternalRef string    `json:"external_ref" binding:"max=200"`
	Note        string    `json:"note" binding:"max=500"`
}

type AdjustmentRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	AmountCents int64     `json:"amount_cents" binding:"required"`
	Reason      string    `json:"reason" binding:"required,max=500"`
}

func (s *WalletService) Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	balance, err := s.wallet.Balance(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	recent, err := s.wallet.Recent(ctx, userID, recentTransactions)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []models.Transaction{}
	}
	return &models.Wallet{BalanceCents: balance, Recent: recent}, nil
}

// Deposit credits a payment captured elsewhere. The external reference is
// unique, so replaying the same capture fails with ErrConflict.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, req DepositRequest) (*models.Transaction, error) {
	if req.AmountCents <= 0 || req.AmountCents > maxDepositCents {
		return nil, invalid("amount_cents must be between 1 and %d", maxDepositCents)
	}
	ref := strings.TrimSpace(req.ExternalRef)
	if ref == "" {
		return nil, invalid("external_ref is required")
	}
	t, err := s.wallet.Apply(ctx, models.LedgerEntry{
		UserID:      userID,
		Type:        models.TxDeposit,
		AmountCents: req.AmountCents,
		Description: "wallet deposit",
		ExternalRef: &ref,
	})
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("deposit", zap.String("user_id", userID.String()), zap.Int64("amount_cents", req.AmountCents),
		zap.String("reference", t.Reference))
	return t, nil
}

func (s *WalletService) Transactions(ctx context.Context, f models.TransactionFilter) (models.List[models.Transaction], error) {
	if f.Type != "" && !f.Type.Valid() {
		return models.List[models.Transaction]{}, invalid("unknown transaction type %q", f.Type)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return models.List[models.Transaction]{}, invalid("from must be before to")
	}
	items, total, err := s.wallet.List(ctx, f)
	if err != nil {
		return models.List[models.Transaction]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

func (s *WalletService) Transaction(ctx context.Context, reference string) (*models.Transaction, error) {
	t, err := s.wallet.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// Summary totals every transaction type in [from, to). The default range is
// the last 30 days.
func (s *WalletService) Summary(ctx context.Context, from, to time.Time) ([]models.TransactionSummary, error) {
	from, to, err := defaultRange(from, to, s.now(), 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	out, err := s.wallet.Summary(ctx, from, to)
	if out == nil {
		out = []models.TransactionSummary{}
	}
	return out, err
}

// Payout records money sent to a reader outside the platform and debits
// their balance.
func (s *WalletService) Payout(ctx context.Context, adminID uuid.UUID, req PayoutRequest) (*models.Transaction, error) {
	u, err := s.users.FindUserByID(ctx, req.ReaderID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if u.Role != models.RoleReader {
		return nil, invalid("payouts are only for readers")
	}
	if req.AmountCents <= 0 {
		return nil, invalid("amount_cents must be positive")
	}
	e := models.LedgerEntry{
		UserID:      req.ReaderID,
		Type:        models.TxPayout,
		AmountCents: -req.AmountCents,
		Description: strings.TrimSpace("payout " + req.Note),
	}
	if ref := strings.TrimSpace(req.ExternalRef); ref != "" {
		e.ExternalRef = &ref
	}
	t, err := s.wallet.Apply(ctx, e)
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("payout", zap.String("reader_id", req.ReaderID.String()), zap.Int64("amount_cents", req.AmountCents),
		zap.String("by", adminID.String()))
	s.notifier.Notify(ctx, req.ReaderID, models.NotifyAccount, "Payout sent",
		fmt.Sprintf("A payout of %d cents is on its way.", req.AmountCents), obj{"reference": t.Reference})
	return t, nil
}

// Adjust applies a signed manual correction.
func (s *WalletService) Adjust(ctx context.Context, adminID uuid.UUID, req AdjustmentRequest) (*models.Transaction, error) {
	if req.AmountCents == 0 {
		return nil, invalid("amount_cents must not be zero")
	}
	t, err := s.wallet.Apply(ctx, models.LedgerEntry{
		UserID:      req.UserID,
		Type:        models.TxAdjustment,
		AmountCents: req.AmountCents,
		Description: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("adjustment", zap.String("user_id", req.UserID.String()), zap.Int64("amount_cents", req.AmountCents),
		zap.String("by", adminID.String()))
	s.notifier.Notify(ctx, req.UserID, models.NotifyAccount, "Balance adjusted",
		req.Reason, obj{"reference": t.Reference, "amount_cents": req.AmountCents})
	return t, nil
}

// defaultRange fills a missing range with the span ending now and rejects
// inverted ranges.
func defaultRange(from, to, now time.Time, span time.Duration) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-span)
	}
	if !from.Before(to) {
		return from, to, invalid("from must be before to")
	}
	return from.UTC(), to.UTC(), nil
}
