package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

// AnalyticsRepository runs read-only aggregate queries for the admin
// dashboards.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) countBy(ctx context.Context, query string, args ...any) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// Overview aggregates platform activity in [from, to).
func (r *AnalyticsRepository) Overview(ctx context.Context, from, to time.Time) (*models.Overview, error) {
	o := &models.Overview{From: from, To: to}
	var err error

	if o.UsersByRole, err = r.countBy(ctx, `
		SELECT role::text, COUNT(*) FROM users WHERE deleted_at IS NULL GROUP BY role`); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	if o.ReadersByStatus, err = r.countBy(ctx, `
		SELECT status::text, COUNT(*) FROM reader_profiles GROUP BY status`); err != nil {
		return nil, fmt.Errorf("readers by status: %w", err)
	}
	if o.SessionsByStatus, err = r.countBy(ctx, `
		SELECT status::text, COUNT(*) FROM sessions
		WHERE starts_at >= $1 AND starts_at < $2 GROUP BY status`, from, to); err != nil {
		return nil, fmt.Errorf("sessions by status: %w", err)
	}
	if o.RevenueByStream, err = r.countBy(ctx, `
		SELECT type, -SUM(amount_cents) FROM transactions
		WHERE type IN ('session_payment', 'product_purchase', 'gift_purchase')
		  AND created_at >= $1 AND created_at < $2
		GROUP BY type`, from, to); err != nil {
		return nil, fmt.Errorf("revenue by stream: %w", err)
	}

	// Refunds give back session revenue.
	var refunds int64
	if err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE type = 'session_refund' AND created_at >= $1 AND created_at < $2`, from, to).Scan(&refunds); err != nil {
		return nil, err
	}
	if refunds != 0 {
		o.RevenueByStream[string(models.TxSessionPayment)] -= refunds
	}

	if err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
				WHERE type = 'platform_fee' AND created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM support_tickets WHERE status IN ('open', 'in_progress'))`,
		from, to).Scan(&o.PlatformFeesCents, &o.NewUsers, &o.OpenTickets); err != nil {
		return nil, err
	}
	return o, nil
}

// Revenue buckets gross revenue and fees by day, week or month.
func (r *AnalyticsRepository) Revenue(ctx context.Context, from, to time.Time, interval string) ([]models.RevenuePoint, error) {
	switch interval {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc($3, created_at) AS period,
			COALESCE(-SUM(amount_cents) FILTER (WHERE type = 'session_payment'), 0)
				- COALESCE(SUM(amount_cents) FILTER (WHERE type = 'session_refund'), 0),
			COALESCE(-SUM(amount_cents) FILTER (WHERE type = 'product_purchase'), 0),
			COALESCE(-SUM(amount_cents) FILTER (WHERE type = 'gift_purchase'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'platform_fee'), 0)
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY period
		ORDER BY period`, from, to, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RevenuePoint
	for rows.Next() {
		var p models.RevenuePoint
		if err := rows.Scan(&p.Period, &p.SessionsCents, &p.ProductsCents, &p.GiftsCents, &p.FeesCents); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopReaders ranks readers by earnings credited in [from, to).
func (r *AnalyticsRepository) TopReaders(ctx context.Context, from, to time.Time, limit int) ([]models.TopReader, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.user_id, rp.display_name, e.earnings,
			(SELECT COUNT(*) FROM sessions s
				WHERE s.reader_id = rp.user_id AND s.status = 'completed'
				  AND s.completed_at >= $1 AND s.completed_at < $2),
			rp.rating_avg::float8
		FROM (
			SELECT user_id, SUM(amount_cents) AS earnings FROM transactions
			WHERE type IN ('reader_earning', 'product_earning', 'gift_earning')
			  AND created_at >= $1 AND created_at < $2
			GROUP BY user_id
		) e
		JOIN reader_profiles rp ON rp.user_id = e.user_id
		ORDER BY e.earnings DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TopReader
	for rows.Next() {
		var t models.TopReader
		if err := rows.Scan(&t.ReaderID, &t.DisplayName, &t.EarningsCents, &t.Sessions, &t.RatingAvg); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
