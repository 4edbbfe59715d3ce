package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/models"
)

const (
	maxMessageLength = 4000
	defaultMessages  = 50
	maxMessages      = 100
)

type MessagingService struct {
	conversations ConversationStore
	readers       ReaderStore
	notifier      Notifier
	pusher        Pusher
	log           *zap.Logger
}

func NewMessagingService(conversations ConversationStore, readers ReaderStore, notifier Notifier, log *zap.Logger) *MessagingService {
	return &MessagingService{
		conversations: conversations,
		readers:       readers,
		notifier:      notifier,
		pusher:        nopPusher{},
		log:           log.Named("messaging"),
	}
}

func (s *MessagingService) SetPusher(p Pusher) {
	s.pusher = p
}

type OpenConversationRequest struct {
	ReaderID uuid.UUID `json:"reader_id" binding:"required"`
}

type SendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// Open returns the caller's conversation with an approved reader, creating
// it on first contact.
func (s *MessagingService) Open(ctx context.Context, clientID, readerID uuid.UUID) (*models.Conversation, error) {
	if clientID == readerID {
		return nil, invalid("cannot open a conversation with yourself")
	}
	reader, err := s.readers.FindByID(ctx, readerID)
	if err != nil {
		return nil, err
	}
	if reader == nil || reader.Status != models.ReaderApproved {
		return nil, fmt.Errorf("%w: reader", ErrNotFound)
	}
	return s.conversations.Open(ctx, clientID, readerID)
}

func (s *MessagingService) List(ctx context.Context, userID uuid.UUID, p models.Page) (models.List[models.Conversation], error) {
	items, total, err := s.conversations.ListForUser(ctx, userID, p)
	if err != nil {
		return models.List[models.Conversation]{}, err
	}
	return models.NewList(items, total, p), nil
}

func (s *MessagingService) conversation(ctx context.Context, userID, id uuid.UUID) (*models.Conversation, error) {
	c, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.IsParticipant(userID) {
		return nil, ErrNotFound
	}
	return c, nil
}

// Messages pages backwards through history, newest first.
func (s *MessagingService) Messages(ctx context.Context, userID, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error) {
	if _, err := s.conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessages
	}
	if limit > maxMessages {
		limit = maxMessages
	}
	msgs, err := s.conversations.Messages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Send stores a message and pushes it to the other participant. Offline
// recipients get a notification instead.
func (s *MessagingService) Send(ctx context.Context, senderID, conversationID uuid.UUID, body string) (*models.Message, error) {
	c, err := s.conversation(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}
	m := &models.Message{ConversationID: c.ID, SenderID: senderID, Body: body}
	m.Prepare()
	if m.Body == "" {
		return nil, invalid("message body must not be empty")
	}
	if utf8.RuneCountInString(m.Body) > maxMessageLength {
		return nil, invalid("message body must be at most %d characters", maxMessageLength)
	}
	if err := s.conversations.AddMessage(ctx, m); err != nil {
		return nil, err
	}

	to := c.Other(senderID)
	err = s.pusher.SendTypedMessage(to.String(), FrameChatMessage, m)
	if p, ok := s.pusher.(Presence); err != nil || (ok && !p.IsUserConnected(to.String())) {
		s.notifier.Notify(ctx, to, models.NotifyMessage, "New message", preview(m.Body),
			obj{"conversation_id": c.ID, "message_id": m.ID})
	}
	// Echo to the sender's other open tabs.
	_ = s.pusher.SendTypedMessage(senderID.String(), FrameChatMessage, m)
	return m, nil
}

// MarkRead sets read receipts on everything the other side sent.
func (s *MessagingService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	c, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.conversations.MarkRead(ctx, c.ID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_ = s.pusher.SendTypedMessage(c.Other(userID).String(), FrameChatRead, obj{
			"conversation_id": c.ID,
			"reader_id":       userID,
			"read_at":         time.Now().UTC(),
		})
	}
	return n, nil
}

type chatFrame struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Body           string    `json:"body"`
}

// HandleFrame serves chat frames sent over the websocket.
func (s *MessagingService) HandleFrame(ctx context.Context, userID, msgType string, data json.RawMessage) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return err
	}
	var f chatFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return invalid("malformed %s frame", msgType)
	}
	switch msgType {
	case FrameChatMessage:
		_, err := s.Send(ctx, uid, f.ConversationID, f.Body)
		return err
	case FrameTyping:
		c, err := s.conversation(ctx, uid, f.ConversationID)
		if err != nil {
			return err
		}
		return s.pusher.SendTypedMessage(c.Other(uid).String(), FrameTyping, obj{
			"conversation_id": c.ID,
			"user_id":         uid,
		})
	case FrameChatRead:
		_, err := s.MarkRead(ctx, uid, f.ConversationID)
		return err
	}
	return invalid("unknown frame type %q", msgType)
}

func preview(body string) string {
	const n = 120
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	r := []rune(body)
	return string(r[:n]) + "..."
}
