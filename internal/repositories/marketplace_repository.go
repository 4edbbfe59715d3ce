package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

// MarketplaceRepository owns carts, coupons and orders.
type MarketplaceRepository struct {
	pool *pgxpool.Pool
}

func NewMarketplaceRepository(pool *pgxpool.Pool) *MarketplaceRepository {
	return &MarketplaceRepository{pool: pool}
}

func (r *MarketplaceRepository) CartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ci.product_id, p.reader_id, p.title, p.price_cents, p.status, ci.quantity, ci.added_at
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ProductID, &it.ReaderID, &it.Title, &it.PriceCents, &it.Status, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *MarketplaceRepository) CartCoupon(ctx context.Context, userID uuid.UUID) (string, error) {
	var code *string
	err := r.pool.QueryRow(ctx, `SELECT coupon_code FROM carts WHERE user_id = $1`, userID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil || code == nil {
		return "", err
	}
	return *code, nil
}

func (r *MarketplaceRepository) SetCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
			userID, productID, quantity)
		return err
	})
}

func (r *MarketplaceRepository) RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCartCoupon attaches a coupon code to the cart; nil clears it.
func (r *MarketplaceRepository) SetCartCoupon(ctx context.Context, userID uuid.UUID, code *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO carts (user_id, coupon_code) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET coupon_code = EXCLUDED.coupon_code, updated_at = NOW()`,
		userID, code)
	return err
}

const couponColumns = `id, code, percent_bps, amount_off_cents, max_redemptions, redemptions, expires_at, active, created_at`

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.PercentBps, &c.AmountOffCents, &c.MaxRedemptions, &c.Redemptions,
		&c.ExpiresAt, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *MarketplaceRepository) FindCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

func (r *MarketplaceRepository) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Prepare()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO coupons (id, code, percent_bps, amount_off_cents, max_redemptions, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		c.ID, c.Code, c.PercentBps, c.AmountOffCents, c.MaxRedemptions, c.ExpiresAt, c.Active,
	).Scan(&c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *MarketplaceRepository) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *MarketplaceRepository) SetCouponActive(ctx context.Context, code string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE coupons SET active = $2 WHERE code = $1`, code, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Checkout records a paid order in one transaction: the buyer is debited,
// each seller credited, the fee recorded, the coupon redeemed and the cart
// emptied. The first entry must be the buyer's debit.
func (r *MarketplaceRepository) Checkout(ctx context.Context, o *models.Order, entries []models.LedgerEntry, feeCents int64) error {
	o.Prepare()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO orders (id, user_id, subtotal_cents, discount_cents, tax_cents, total_cents, coupon_code, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at`,
			o.ID, o.UserID, o.SubtotalCents, o.DiscountCents, o.TaxCents, o.TotalCents, o.CouponCode, o.Status,
		).Scan(&o.CreatedAt); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(`
				INSERT INTO order_items (id, order_id, product_id, reader_id, title, unit_price_cents,
					quantity, discount_cents, fee_cents, earning_cents)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				it.ID, o.ID, it.ProductID, it.ReaderID, it.Title, it.UnitPriceCents,
				it.Quantity, it.DiscountCents, it.FeeCents, it.EarningCents)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		for _, e := range entries {
			e.RelatedID = &o.ID
			if _, err := applyLedger(ctx, tx, e); err != nil {
				return err
			}
		}
		if err := recordFee(ctx, tx, feeCents, o.ID, "marketplace fee"); err != nil {
			return err
		}

		if o.CouponCode != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE coupons SET redemptions = redemptions + 1
				WHERE code = $1 AND active
				  AND (max_redemptions IS NULL OR redemptions < max_redemptions)
				  AND (expires_at IS NULL OR expires_at > NOW())`, *o.CouponCode)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrCouponExhausted
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, o.UserID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE carts SET coupon_code = NULL, updated_at = NOW() WHERE user_id = $1`, o.UserID)
		return err
	})
}

func (r *MarketplaceRepository) Orders(ctx context.Context, userID uuid.UUID, p models.Page) ([]models.Order, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	p = p.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, subtotal_cents, discount_cents, tax_cents, total_cents, coupon_code, status, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.SubtotalCents, &o.DiscountCents, &o.TaxCents,
			&o.TotalCents, &o.CouponCode, &o.Status, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, err
		}
		o.Items = []models.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(orders) == 0 {
		return orders, total, nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemRows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, reader_id, title, unit_price_cents, quantity,
			discount_cents, fee_cents, earning_cents
		FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, 0, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it models.OrderItem
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ReaderID, &it.Title, &it.UnitPriceCents,
			&it.Quantity, &it.DiscountCents, &it.FeeCents, &it.EarningCents); err != nil {
			return nil, 0, fmt.Errorf("scan order item: %w", err)
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return orders, total, itemRows.Err()
}
