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

type ReaderRepository struct {
	pool *pgxpool.Pool
}

func NewReaderRepository(pool *pgxpool.Pool) *ReaderRepository {
	return &ReaderRepository{pool: pool}
}

const readerColumns = `r.user_id, r.display_name, r.bio, r.specialties, r.chat_rate_cents, r.voice_rate_cents,
	r.video_rate_cents, r.timezone, r.status::text, r.rating_avg::float8, r.review_count, r.online,
	r.approved_at, r.created_at, r.updated_at`

const readerFrom = ` FROM reader_profiles r JOIN users u ON u.id = r.user_id`

func scanReader(row pgx.Row) (*models.ReaderProfile, error) {
	var p models.ReaderProfile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.Specialties, &p.ChatRate, &p.VoiceRate,
		&p.VideoRate, &p.Timezone, &p.Status, &p.RatingAvg, &p.ReviewCount, &p.Online,
		&p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ReaderRepository) Create(ctx context.Context, p *models.ReaderProfile) error {
	p.Prepare()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reader_profiles (user_id, display_name, bio, specialties, chat_rate_cents,
			voice_rate_cents, video_rate_cents, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text::reader_status_t)
		RETURNING created_at, updated_at`,
		p.UserID, p.DisplayName, p.Bio, p.Specialties, p.ChatRate,
		p.VoiceRate, p.VideoRate, p.Timezone, string(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ReaderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReaderProfile, error) {
	return scanReader(r.pool.QueryRow(ctx, `SELECT `+readerColumns+readerFrom+` WHERE r.user_id = $1 AND u.deleted_at IS NULL`, id))
}

func (r *ReaderRepository) Update(ctx context.Context, p *models.ReaderProfile) error {
	p.Prepare()
	tag, err := r.pool.Exec(ctx, `
		UPDATE reader_profiles SET display_name = $2, bio = $3, specialties = $4,
			chat_rate_cents = $5, voice_rate_cents = $6, video_rate_cents = $7,
			timezone = $8, updated_at = NOW()
		WHERE user_id = $1`,
		p.UserID, p.DisplayName, p.Bio, p.Specialties, p.ChatRate, p.VoiceRate, p.VideoRate, p.Timezone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReaderRepository) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reader_profiles SET online = $2, updated_at = NOW() WHERE user_id = $1`, id, online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus moves a reader through review. Approval also grants the reader
// role on the user account.
func (r *ReaderRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.ReaderStatus) (*models.ReaderProfile, error) {
	var out *models.ReaderProfile
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE reader_profiles SET
				status = $2::text::reader_status_t,
				online = CASE WHEN $2 = 'approved' THEN online ELSE FALSE END,
				approved_at = CASE WHEN $2 = 'approved' THEN COALESCE(approved_at, NOW()) ELSE approved_at END,
				updated_at = NOW()
			WHERE user_id = $1`, id, string(status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if status == models.ReaderApproved {
			if _, err := tx.Exec(ctx, `UPDATE users SET role = 'reader', updated_at = NOW()
				WHERE id = $1 AND role = 'client'`, id); err != nil {
				return err
			}
		}
		out, err = scanReader(tx.QueryRow(ctx, `SELECT `+readerColumns+readerFrom+` WHERE r.user_id = $1`, id))
		return err
	})
	return out, err
}

func (r *ReaderRepository) List(ctx context.Context, f models.ReaderFilter) ([]models.ReaderProfile, int64, error) {
	q := buildReaderQuery(f)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+readerFrom+q.clause(), q.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	limit := q.arg(page.Limit)
	offset := q.arg(page.Offset())
	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s LIMIT %s OFFSET %s`,
		readerColumns, readerFrom, q.clause(), readerOrderBy(f), limit, offset)

	rows, err := r.pool.Query(ctx, query, q.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var readers []models.ReaderProfile
	for rows.Next() {
		p, err := scanReader(rows)
		if err != nil {
			return nil, 0, err
		}
		readers = append(readers, *p)
	}
	return readers, total, rows.Err()
}
