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

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Open returns the conversation for the pair, creating it on first contact.
func (r *ConversationRepository) Open(ctx context.Context, clientID, readerID uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{ClientID: clientID, ReaderID: readerID}
	c.Prepare()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, client_id, reader_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id, reader_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING id, last_message_at, created_at`,
		c.ID, clientID, readerID,
	).Scan(&c.ID, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, reader_id, last_message_at, created_at
		FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.ClientID, &c.ReaderID, &c.LastMessageAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListForUser returns the user's conversations, most recent first, with the
// number of messages the user has not read yet.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, p models.Page) ([]models.Conversation, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE client_id = $1 OR reader_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	p = p.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.client_id, c.reader_id, c.last_message_at, c.created_at,
			(SELECT COUNT(*) FROM messages m
			  WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL)
		FROM conversations c
		WHERE c.client_id = $1 OR c.reader_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
		LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ReaderID, &c.LastMessageAt, &c.CreatedAt, &c.UnreadCount); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Messages pages backwards through history. before is exclusive.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error) {
	if before == nil {
		now := time.Now().Add(time.Minute)
		before = &now
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, read_at, created_at
		FROM messages
		WHERE conversation_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3`, conversationID, *before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) AddMessage(ctx context.Context, m *models.Message) error {
	m.Prepare()
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, body)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`, m.ID, m.ConversationID, m.SenderID, m.Body,
		).Scan(&m.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, m.ConversationID, m.CreatedAt)
		return err
	})
}

// MarkRead marks every message not sent by userID as read.
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL`, conversationID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
