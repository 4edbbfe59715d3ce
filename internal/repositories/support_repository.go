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

type SupportRepository struct {
	pool *pgxpool.Pool
}

func NewSupportRepository(pool *pgxpool.Pool) *SupportRepository {
	return &SupportRepository{pool: pool}
}

const ticketColumns = `id, user_id, subject, category, priority, status, assignee_id, created_at, updated_at, closed_at`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.Subject, &t.Category, &t.Priority, &t.Status, &t.AssigneeID,
		&t.CreatedAt, &t.UpdatedAt, &t.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func insertTicketMessage(ctx context.Context, q querier, m *models.TicketMessage) error {
	m.Prepare()
	return q.QueryRow(ctx, `
		INSERT INTO support_messages (id, ticket_id, author_id, from_staff, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		m.ID, m.TicketID, m.AuthorID, m.FromStaff, m.Body,
	).Scan(&m.CreatedAt)
}

// Create opens a ticket together with its first message.
func (r *SupportRepository) Create(ctx context.Context, t *models.Ticket, first *models.TicketMessage) error {
	t.Prepare()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO support_tickets (id, user_id, subject, category, priority, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at`,
			t.ID, t.UserID, t.Subject, t.Category, string(t.Priority), string(t.Status),
		).Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		first.TicketID = t.ID
		first.AuthorID = t.UserID
		if err := insertTicketMessage(ctx, tx, first); err != nil {
			return err
		}
		t.Messages = []models.TicketMessage{*first}
		return nil
	})
}

// FindByID loads the ticket and its thread in chronological order.
func (r *SupportRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1`, id))
	if err != nil || t == nil {
		return t, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, ticket_id, author_id, from_staff, body, created_at
		FROM support_messages WHERE ticket_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	t.Messages = []models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.FromStaff, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		t.Messages = append(t.Messages, m)
	}
	return t, rows.Err()
}

func (r *SupportRepository) List(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int64, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = "+arg(*f.UserID))
	}
	if f.AssigneeID != nil {
		conds = append(conds, "assignee_id = "+arg(*f.AssigneeID))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(string(f.Status)))
	}
	if f.Priority != "" {
		conds = append(conds, "priority = "+arg(string(f.Priority)))
	}
	if f.Category != "" {
		conds = append(conds, "category = "+arg(strings.ToLower(f.Category)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM support_tickets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM support_tickets%s
		ORDER BY CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
			updated_at DESC
		LIMIT $%d OFFSET $%d`, ticketColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// AddMessage appends to the thread and bumps the ticket. A user reply on a
// resolved ticket reopens it.
func (r *SupportRepository) AddMessage(ctx context.Context, m *models.TicketMessage) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE support_tickets SET updated_at = NOW(),
				status = CASE WHEN NOT $2 AND status = 'resolved' THEN 'open' ELSE status END
			WHERE id = $1 AND status <> 'closed'`, m.TicketID, m.FromStaff)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
		return insertTicketMessage(ctx, tx, m)
	})
}

// Update changes status and assignee; nil leaves a field untouched.
func (r *SupportRepository) Update(ctx context.Context, id uuid.UUID, status *models.TicketStatus, assigneeID *uuid.UUID) (*models.Ticket, error) {
	var st *string
	if status != nil {
		s := string(*status)
		st = &s
	}
	t, err := scanTicket(r.pool.QueryRow(ctx, `
		UPDATE support_tickets SET
			status = COALESCE($2, status),
			assignee_id = COALESCE($3, assignee_id),
			closed_at = CASE WHEN COALESCE($2, status) IN ('resolved', 'closed') THEN COALESCE(closed_at, NOW()) ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+ticketColumns, id, st, assigneeID))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}
