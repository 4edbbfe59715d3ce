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

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, client_id, reader_id, type::text, starts_at, duration_minutes, rate_cents,
	price_cents, fee_cents, status::text, notes, cancelled_by, cancel_reason, started_at, completed_at,
	cancelled_at, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.ClientID, &s.ReaderID, &s.Type, &s.StartsAt, &s.DurationMinutes, &s.RatePerMinute,
		&s.PriceCents, &s.FeeCents, &s.Status, &s.Notes, &s.CancelledBy, &s.CancelReason, &s.StartedAt,
		&s.CompletedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]models.Session, error) {
	defer rows.Close()
	var out []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Create books a session. Bookings for the same reader are serialised with
// an advisory lock, the slot is re-checked against other active sessions and
// the client is charged, all in one transaction.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	s.Prepare()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, s.ReaderID.String()); err != nil {
			return err
		}

		var overlap bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM sessions
				WHERE reader_id = $1
				  AND status IN ('pending', 'confirmed', 'in_progress')
				  AND starts_at < $3 AND ends_at > $2
			)`, s.ReaderID, s.StartsAt, s.EndsAt()).Scan(&overlap); err != nil {
			return err
		}
		if overlap {
			return ErrSlotTaken
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO sessions (id, client_id, reader_id, type, starts_at, ends_at, duration_minutes,
				rate_cents, price_cents, status, notes)
			VALUES ($1, $2, $3, $4::text::session_type_t, $5, $6, $7, $8, $9, $10::text::session_status_t, $11)
			RETURNING created_at, updated_at`,
			s.ID, s.ClientID, s.ReaderID, string(s.Type), s.StartsAt, s.EndsAt(), s.DurationMinutes,
			s.RatePerMinute, s.PriceCents, string(s.Status), s.Notes,
		).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return err
		}

		if s.PriceCents > 0 {
			id := s.ID
			_, err := applyLedger(ctx, tx, models.LedgerEntry{
				UserID:      s.ClientID,
				Type:        models.TxSessionPayment,
				AmountCents: -s.PriceCents,
				Description: fmt.Sprintf("%s session, %d min", s.Type, s.DurationMinutes),
				RelatedID:   &id,
			})
			return err
		}
		return nil
	})
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// ActiveBetween returns the reader's slot-holding sessions overlapping [from, to).
func (r *SessionRepository) ActiveBetween(ctx context.Context, readerID uuid.UUID, from, to time.Time) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE reader_id = $1 AND status IN ('pending', 'confirmed', 'in_progress')
		  AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at`, readerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *SessionRepository) List(ctx context.Context, f models.SessionFilter) ([]models.Session, int64, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	switch {
	case f.ClientID != nil && f.ReaderID != nil:
		conds = append(conds, fmt.Sprintf("(client_id = %s OR reader_id = %s)", arg(*f.ClientID), arg(*f.ReaderID)))
	case f.ClientID != nil:
		conds = append(conds, "client_id = "+arg(*f.ClientID))
	case f.ReaderID != nil:
		conds = append(conds, "reader_id = "+arg(*f.ReaderID))
	}
	if f.Status != "" {
		conds = append(conds, "status::text = "+arg(string(f.Status)))
	}
	if f.From != nil {
		conds = append(conds, "starts_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "starts_at < "+arg(*f.To))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM sessions%s ORDER BY starts_at DESC LIMIT $%d OFFSET $%d`,
		sessionColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectSessions(rows)
	return items, total, err
}

// Transition stores the new status and timestamps of s if the row is still in
// status from, then applies the ledger entries and platform fee that go with
// the change. A concurrent change yields ErrStaleState.
func (r *SessionRepository) Transition(ctx context.Context, s *models.Session, from models.SessionStatus, entries []models.LedgerEntry, feeCents int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE sessions SET status = $3::text::session_status_t, fee_cents = $4, cancelled_by = $5,
				cancel_reason = $6, started_at = $7, completed_at = $8, cancelled_at = $9, updated_at = NOW()
			WHERE id = $1 AND status::text = $2
			RETURNING updated_at`,
			s.ID, string(from), string(s.Status), s.FeeCents, s.CancelledBy,
			s.CancelReason, s.StartedAt, s.CompletedAt, s.CancelledAt,
		).Scan(&s.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleState
		}
		if err != nil {
			return err
		}

		for _, e := range entries {
			if _, err := applyLedger(ctx, tx, e); err != nil {
				return err
			}
		}
		return recordFee(ctx, tx, feeCents, s.ID, "session fee")
	})
}
