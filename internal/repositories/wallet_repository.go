package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type WalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const transactionColumns = `id, reference, user_id, type, amount_cents, balance_after_cents,
	description, related_id, external_ref, created_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Reference, &t.UserID, &t.Type, &t.AmountCents, &t.BalanceAfter,
		&t.Description, &t.RelatedID, &t.ExternalRef, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// applyLedger moves money in or out of a user's balance and writes the
// ledger row. A debit that would make the balance negative fails with
// ErrInsufficientFunds.
func applyLedger(ctx context.Context, q querier, e models.LedgerEntry) (*models.Transaction, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE users SET balance_cents = balance_cents + $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND balance_cents + $1 >= 0
		RETURNING balance_cents`, e.AmountCents, e.UserID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)`, e.UserID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}

	userID := e.UserID
	t := &models.Transaction{
		UserID:       &userID,
		Type:         e.Type,
		AmountCents:  e.AmountCents,
		BalanceAfter: &balance,
		Description:  e.Description,
		RelatedID:    e.RelatedID,
		ExternalRef:  e.ExternalRef,
	}
	if err := insertTransaction(ctx, q, t); err != nil {
		return nil, err
	}
	return t, nil
}

// recordFee writes the platform's share of a sale. It has no user.
func recordFee(ctx context.Context, q querier, amount int64, relatedID uuid.UUID, description string) error {
	if amount <= 0 {
		return nil
	}
	t := &models.Transaction{
		Type:        models.TxPlatformFee,
		AmountCents: amount,
		Description: description,
		RelatedID:   &relatedID,
	}
	return insertTransaction(ctx, q, t)
}

func insertTransaction(ctx context.Context, q querier, t *models.Transaction) error {
	t.Prepare()
	err := q.QueryRow(ctx, `
		INSERT INTO transactions (id, reference, user_id, type, amount_cents, balance_after_cents,
			description, related_id, external_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		t.ID, t.Reference, t.UserID, t.Type, t.AmountCents, t.BalanceAfter,
		t.Description, t.RelatedID, t.ExternalRef,
	).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Apply runs a single ledger entry in its own transaction.
func (r *WalletRepository) Apply(ctx context.Context, e models.LedgerEntry) (*models.Transaction, error) {
	var out *models.Transaction
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := applyLedger(ctx, tx, e)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (r *WalletRepository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance_cents FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (r *WalletRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *WalletRepository) FindByReference(ctx context.Context, ref string) (*models.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func transactionWhere(f models.TransactionFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Type != "" {
		conds = append(conds, "type = "+arg(f.Type))
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = "+arg(*f.UserID))
	}
	if f.From != nil {
		conds = append(conds, "created_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "created_at < "+arg(*f.To))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *WalletRepository) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	where, args := transactionWhere(f)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectTransactions(rows)
	return items, total, err
}

func (r *WalletRepository) Summary(ctx context.Context, from, to time.Time) ([]models.TransactionSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT type, COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY type ORDER BY type`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TransactionSummary
	for rows.Next() {
		var s models.TransactionSummary
		if err := rows.Scan(&s.Type, &s.Count, &s.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
