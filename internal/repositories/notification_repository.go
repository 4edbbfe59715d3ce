package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, user_id, type, title, body, data, read_at, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Data, &n.ReadAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func countUnread(ctx context.Context, q querier, userID uuid.UUID) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

// Create inserts the notification and returns the user's unread count as
// seen by the same transaction.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (int64, error) {
	n.Prepare()
	var unread int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO notifications (id, user_id, type, title, body, data)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			n.ID, n.UserID, n.Type, n.Title, n.Body, n.Data,
		).Scan(&n.CreatedAt); err != nil {
			return err
		}
		var err error
		unread, err = countUnread(ctx, tx, n.UserID)
		return err
	})
	return unread, err
}

func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, f models.NotificationFilter) ([]models.Notification, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND (read_at IS NULL OR NOT $2)`, userID, f.UnreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND (read_at IS NULL OR NOT $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, userID, f.UnreadOnly, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return countUnread(ctx, r.pool, userID)
}

// MarkRead marks one notification read and recounts unread in the same
// transaction. ErrNotFound when the notification is not the user's.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	var unread int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			WITH upd AS (
				UPDATE notifications SET read_at = COALESCE(read_at, NOW())
				WHERE id = $1 AND user_id = $2
				RETURNING 1
			)
			SELECT EXISTS(SELECT 1 FROM upd)`, id, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		var err error
		unread, err = countUnread(ctx, tx, userID)
		return err
	})
	return unread, err
}

// MarkAllRead returns how many rows changed and the new unread count.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var updated, unread int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
		if err != nil {
			return err
		}
		updated = tag.RowsAffected()
		unread, err = countUnread(ctx, tx, userID)
		return err
	})
	return updated, unread, err
}

func (r *NotificationRepository) Delete(ctx context.Context, userID, id uuid.UUID) (int64, error) {
	var unread int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		unread, err = countUnread(ctx, tx, userID)
		return err
	})
	return unread, err
}

func (r *NotificationRepository) Preferences(ctx context.Context, userID uuid.UUID) (models.NotificationPreferences, error) {
	p := models.NotificationPreferences{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT in_app_enabled, email_enabled, muted_types, updated_at
		FROM notification_preferences WHERE user_id = $1`, userID,
	).Scan(&p.InAppEnabled, &p.EmailEnabled, &p.MutedTypes, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultPreferences(userID), nil
	}
	return p, err
}

func (r *NotificationRepository) SavePreferences(ctx context.Context, p *models.NotificationPreferences) error {
	if p.MutedTypes == nil {
		p.MutedTypes = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO notification_preferences (user_id, in_app_enabled, email_enabled, muted_types)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			in_app_enabled = EXCLUDED.in_app_enabled,
			email_enabled = EXCLUDED.email_enabled,
			muted_types = EXCLUDED.muted_types,
			updated_at = NOW()
		RETURNING updated_at`,
		p.UserID, p.InAppEnabled, p.EmailEnabled, p.MutedTypes,
	).Scan(&p.UpdatedAt)
}
