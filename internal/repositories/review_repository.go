package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type ReviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id, session_id, client_id, reader_id, rating, comment, response, responded_at,
	status, created_at, updated_at`

func scanReview(row pgx.Row) (*models.Review, error) {
	var rv models.Review
	err := row.Scan(&rv.ID, &rv.SessionID, &rv.ClientID, &rv.ReaderID, &rv.Rating, &rv.Comment, &rv.Response,
		&rv.RespondedAt, &rv.Status, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rv, nil
}

// recomputeRating refreshes the reader's aggregate from published reviews.
func recomputeRating(ctx context.Context, q querier, readerID uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE reader_profiles SET
			rating_avg = COALESCE((SELECT ROUND(AVG(rating)::numeric, 2) FROM reviews
				WHERE reader_id = $1 AND status = 'published'), 0),
			review_count = (SELECT COUNT(*) FROM reviews WHERE reader_id = $1 AND status = 'published'),
			updated_at = NOW()
		WHERE user_id = $1`, readerID)
	return err
}

func (r *ReviewRepository) Create(ctx context.Context, rv *models.Review) error {
	rv.Prepare()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO reviews (id, session_id, client_id, reader_id, rating, comment, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			rv.ID, rv.SessionID, rv.ClientID, rv.ReaderID, rv.Rating, rv.Comment, string(rv.Status),
		).Scan(&rv.CreatedAt, &rv.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return err
		}
		return recomputeRating(ctx, tx, rv.ReaderID)
	})
}

func (r *ReviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	return scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
}

func (r *ReviewRepository) List(ctx context.Context, f models.ReviewFilter) ([]models.Review, int64, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ReaderID != nil {
		conds = append(conds, "reader_id = "+arg(*f.ReaderID))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(string(f.Status)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM reviews%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reviewColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rv)
	}
	return out, total, rows.Err()
}

// Respond stores the reader's one-time reply.
func (r *ReviewRepository) Respond(ctx context.Context, id uuid.UUID, response string) (*models.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `
		UPDATE reviews SET response = $2, responded_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND response IS NULL
		RETURNING `+reviewColumns, id, response))
	if err != nil {
		return nil, err
	}
	if rv == nil {
		return nil, ErrStaleState
	}
	return rv, nil
}

func (r *ReviewRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.ReviewStatus) (*models.Review, error) {
	var out *models.Review
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rv, err := scanReview(tx.QueryRow(ctx, `
			UPDATE reviews SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+reviewColumns, id, string(status)))
		if err != nil {
			return err
		}
		if rv == nil {
			return ErrNotFound
		}
		out = rv
		return recomputeRating(ctx, tx, rv.ReaderID)
	})
	return out, err
}

func (r *ReviewRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) (*models.Review, error) {
	return scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE session_id = $1`, sessionID))
}
