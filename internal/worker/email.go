// Package worker turns domain events into transactional email.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/events"
	"lumen-backend/internal/mailer"
	"lumen-backend/internal/models"
	"lumen-backend/internal/repositories"
)

// Keys are the routing key patterns the email queue is bound to.
var Keys = []string{"session.*", events.OrderCompleted, events.TicketReplied}

type UserLookup interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ReaderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReaderProfile, error)
}

type Preferences interface {
	WantsEmail(ctx context.Context, userID uuid.UUID, kind string) (bool, error)
}

// Emailer renders and sends one email per interested recipient of an event.
type Emailer struct {
	users    UserLookup
	readers  ReaderLookup
	prefs    Preferences
	renderer *mailer.Renderer
	sender   mailer.Sender
	log      *zap.Logger
}

func NewEmailer(users UserLookup, readers ReaderLookup, prefs Preferences, renderer *mailer.Renderer,
	sender mailer.Sender, log *zap.Logger) *Emailer {
	return &Emailer{
		users:    users,
		readers:  readers,
		prefs:    prefs,
		renderer: renderer,
		sender:   sender,
		log:      log.Named("emailer"),
	}
}

// Handle is an events.Handler. Unknown event types are acknowledged and
// ignored.
func (e *Emailer) Handle(ctx context.Context, env events.Envelope) error {
	switch env.Type {
	case events.SessionBooked, events.SessionConfirmed, events.SessionDeclined,
		events.SessionCancelled, events.SessionCompleted:
		var p events.SessionPayload
		if err := env.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e.session(ctx, env.Type, p)
	case events.OrderCompleted:
		var p events.OrderPayload
		if err := env.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e.send(ctx, p.UserID, models.NotifyOrder, mailer.TemplateOrderCompleted, map[string]any{
			"order": map[string]any{"id": p.OrderID, "total_cents": p.TotalCents, "titles": p.Titles},
		})
	case events.TicketReplied:
		var p events.TicketPayload
		if err := env.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e.send(ctx, p.UserID, models.NotifyTicketReply, mailer.TemplateTicketReplied, map[string]any{
			"ticket": map[string]any{"id": p.TicketID, "subject": p.Subject, "body": p.Body},
		})
	default:
		e.log.Debug("ignoring event", zap.String("type", env.Type))
		return nil
	}
}

func (e *Emailer) session(ctx context.Context, eventType string, p events.SessionPayload) error {
	bindings := map[string]any{
		"session": map[string]any{
			"id":               p.SessionID,
			"type":             p.Type,
			"starts_at":        p.StartsAt,
			"duration_minutes": p.Minutes,
			"price_cents":      p.PriceCents,
			"reason":           p.Reason,
		},
		"reader_name": e.readerName(ctx, p.ReaderID),
	}

	switch eventType {
	case events.SessionBooked:
		bindings["client_name"] = e.userName(ctx, p.ClientID)
		return e.send(ctx, p.ReaderID, models.NotifySessionBooked, mailer.TemplateSessionBooked, bindings)
	case events.SessionConfirmed:
		return e.send(ctx, p.ClientID, models.NotifySessionConfirmed, mailer.TemplateSessionConfirmed, bindings)
	case events.SessionDeclined:
		return e.send(ctx, p.ClientID, models.NotifySessionDeclined, mailer.TemplateSessionDeclined, bindings)
	case events.SessionCompleted:
		return e.send(ctx, p.ClientID, models.NotifySessionCompleted, mailer.TemplateSessionCompleted, bindings)
	case events.SessionCancelled:
		// Whoever cancelled already knows.
		recipient := p.ReaderID
		if p.ActorID != p.ClientID {
			recipient = p.ClientID
		}
		return e.send(ctx, recipient, models.NotifySessionCancelled, mailer.TemplateSessionCancelled, bindings)
	}
	return nil
}

func (e *Emailer) send(ctx context.Context, userID, kind, template string, bindings map[string]any) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		e.log.Warn("bad recipient id", zap.String("user_id", userID), zap.String("template", template))
		return nil
	}

	ok, err := e.prefs.WantsEmail(ctx, id, kind)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	if !ok {
		e.log.Debug("email muted", zap.String("user_id", userID), zap.String("type", kind))
		return nil
	}

	user, err := e.users.FindUserByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if user.Email == "" || !user.IsActive() {
		return nil
	}

	bindings["recipient"] = map[string]any{"name": user.DisplayName, "email": user.Email}
	subject, html, err := e.renderer.Render(template, bindings)
	if err != nil {
		return err
	}
	return e.sender.Send(ctx, mailer.Message{To: user.Email, Subject: subject, HTML: html, Tag: template})
}

func (e *Emailer) readerName(ctx context.Context, id string) string {
	rid, err := uuid.Parse(id)
	if err != nil {
		return ""
	}
	r, err := e.readers.FindByID(ctx, rid)
	if err != nil {
		return ""
	}
	return r.DisplayName
}

func (e *Emailer) userName(ctx context.Context, id string) string {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ""
	}
	u, err := e.users.FindUserByID(ctx, uid)
	if err != nil {
		return ""
	}
	return u.DisplayName
}
