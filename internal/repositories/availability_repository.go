package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type AvailabilityRepository struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) Rules(ctx context.Context, readerID uuid.UUID) ([]models.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reader_id, weekday, start_time, end_time, session_types, created_at
		FROM availability_rules WHERE reader_id = $1
		ORDER BY weekday, start_time`, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.AvailabilityRule
	for rows.Next() {
		var rule models.AvailabilityRule
		if err := rows.Scan(&rule.ID, &rule.ReaderID, &rule.Weekday, &rule.StartTime, &rule.EndTime,
			&rule.SessionTypes, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ReplaceRules swaps the reader's whole weekly pattern in one transaction.
func (r *AvailabilityRepository) ReplaceRules(ctx context.Context, readerID uuid.UUID, rules []models.AvailabilityRule) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE reader_id = $1`, readerID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i := range rules {
			rules[i].ReaderID = readerID
			rules[i].Prepare()
			batch.Queue(`
				INSERT INTO availability_rules (id, reader_id, weekday, start_time, end_time, session_types)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				rules[i].ID, readerID, rules[i].Weekday, rules[i].StartTime, rules[i].EndTime, rules[i].SessionTypes)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Exceptions returns exceptions overlapping [from, to).
func (r *AvailabilityRepository) Exceptions(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.AvailabilityException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reader_id, starts_at, ends_at, kind, reason, created_at
		FROM availability_exceptions
		WHERE reader_id = $1 AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at`, readerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AvailabilityException
	for rows.Next() {
		var e models.AvailabilityException
		if err := rows.Scan(&e.ID, &e.ReaderID, &e.StartsAt, &e.EndsAt, &e.Kind, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *AvailabilityRepository) AddException(ctx context.Context, e *models.AvailabilityException) error {
	e.Prepare()
	return r.pool.QueryRow(ctx, `
		INSERT INTO availability_exceptions (id, reader_id, starts_at, ends_at, kind, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		e.ID, e.ReaderID, e.StartsAt, e.EndsAt, string(e.Kind), e.Reason,
	).Scan(&e.CreatedAt)
}

func (r *AvailabilityRepository) DeleteException(ctx context.Context, readerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_exceptions WHERE id = $1 AND reader_id = $2`, id, readerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
