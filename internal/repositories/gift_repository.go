package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type GiftRepository struct {
	pool *pgxpool.Pool
}

func NewGiftRepository(pool *pgxpool.Pool) *GiftRepository {
	return &GiftRepository{pool: pool}
}

const giftColumns = `id, name, description, icon_url, price_cents, active, created_at, updated_at`

func scanGift(row pgx.Row) (*models.Gift, error) {
	var g models.Gift
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.IconURL, &g.PriceCents, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *GiftRepository) Create(ctx context.Context, g *models.Gift) error {
	g.Prepare()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO gifts (id, name, description, icon_url, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Description, g.IconURL, g.PriceCents, g.Active,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *GiftRepository) Update(ctx context.Context, g *models.Gift) error {
	g.Prepare()
	err := r.pool.QueryRow(ctx, `
		UPDATE gifts SET name = $2, description = $3, icon_url = $4, price_cents = $5, active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		g.ID, g.Name, g.Description, g.IconURL, g.PriceCents, g.Active,
	).Scan(&g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *GiftRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	return scanGift(r.pool.QueryRow(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id))
}

func (r *GiftRepository) List(ctx context.Context, activeOnly bool) ([]models.Gift, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+giftColumns+` FROM gifts
		WHERE active OR NOT $1 ORDER BY price_cents, name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Gift
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// Send records a gift: sender debited, reader credited, fee booked.
func (r *GiftRepository) Send(ctx context.Context, gt *models.GiftTransaction, entries []models.LedgerEntry) error {
	gt.Prepare()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO gift_transactions (id, gift_id, sender_id, reader_id, session_id, message,
				price_cents, fee_cents, earning_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at`,
			gt.ID, gt.GiftID, gt.SenderID, gt.ReaderID, gt.SessionID, gt.Message,
			gt.PriceCents, gt.FeeCents, gt.EarningCents,
		).Scan(&gt.CreatedAt); err != nil {
			return err
		}
		for _, e := range entries {
			e.RelatedID = &gt.ID
			if _, err := applyLedger(ctx, tx, e); err != nil {
				return err
			}
		}
		return recordFee(ctx, tx, gt.FeeCents, gt.ID, "gift fee")
	})
}

func (r *GiftRepository) history(ctx context.Context, column string, userID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM gift_transactions WHERE `+column+` = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	p = p.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT gt.id, gt.gift_id, g.name, gt.sender_id, gt.reader_id, gt.session_id, gt.message,
			gt.price_cents, gt.fee_cents, gt.earning_cents, gt.created_at
		FROM gift_transactions gt JOIN gifts g ON g.id = gt.gift_id
		WHERE gt.`+column+` = $1
		ORDER BY gt.created_at DESC LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.GiftTransaction
	for rows.Next() {
		var gt models.GiftTransaction
		if err := rows.Scan(&gt.ID, &gt.GiftID, &gt.GiftName, &gt.SenderID, &gt.ReaderID, &gt.SessionID, &gt.Message,
			&gt.PriceCents, &gt.FeeCents, &gt.EarningCents, &gt.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, gt)
	}
	return out, total, rows.Err()
}

func (r *GiftRepository) Received(ctx context.Context, readerID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error) {
	return r.history(ctx, "reader_id", readerID, p)
}

func (r *GiftRepository) Sent(ctx context.Context, senderID uuid.UUID, p models.Page) ([]models.GiftTransaction, int64, error) {
	return r.history(ctx, "sender_id", senderID, p)
}

// Leaderboard totals gift value per reader since the given time. It backs the
// cached leaderboard when the cache is cold.
func (r *GiftRepository) Leaderboard(ctx context.Context, since time.Time, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT gt.reader_id, COALESCE(rp.display_name, ''), SUM(gt.price_cents)
		FROM gift_transactions gt LEFT JOIN reader_profiles rp ON rp.user_id = gt.reader_id
		WHERE gt.created_at >= $1
		GROUP BY gt.reader_id, rp.display_name
		ORDER BY SUM(gt.price_cents) DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ReaderID, &e.DisplayName, &e.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReaderNames resolves display names for leaderboard entries.
func (r *GiftRepository) ReaderNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, display_name FROM reader_profiles WHERE user_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
