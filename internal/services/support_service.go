package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumen-backend/internal/events"
	"lumen-backend/internal/models"
)

type SupportService struct {
	tickets   SupportStore
	users     UserStore
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger
}

func NewSupportService(tickets SupportStore, users UserStore, notifier Notifier, publisher Publisher, log *zap.Logger) *SupportService {
	return &SupportService{tickets: tickets, users: users, notifier: notifier, publisher: publisher, log: log.Named("support")}
}

type TicketRequest struct {
	Subject  string                `json:"subject" binding:"required,min=3,max=200"`
	Category string                `json:"category" binding:"max=40"`
	Priority models.TicketPriority `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	Body     string                `json:"body" binding:"required,max=10000"`
}

type TicketReplyRequest struct {
	Body string `json:"body" binding:"required,max=10000"`
}

type TicketUpdateRequest struct {
	Status     *models.TicketStatus `json:"status" binding:"omitempty,oneof=open in_progress resolved closed"`
	AssigneeID *uuid.UUID           `json:"assignee_id"`
}

func (s *SupportService) Create(ctx context.Context, userID uuid.UUID, req TicketRequest) (*models.Ticket, error) {
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, invalid("unknown priority %q", req.Priority)
	}
	t := &models.Ticket{UserID: userID, Subject: req.Subject, Category: req.Category, Priority: req.Priority}
	first := &models.TicketMessage{AuthorID: userID, Body: req.Body}
	first.Prepare()
	if first.Body == "" {
		return nil, invalid("body must not be blank")
	}
	if err := s.tickets.Create(ctx, t, first); err != nil {
		return nil, translate(err)
	}
	t.Messages = []models.TicketMessage{*first}
	s.log.Info("ticket opened", zap.String("ticket_id", t.ID.String()), zap.String("priority", string(t.Priority)))
	return t, nil
}

// Mine lists the caller's own tickets.
func (s *SupportService) Mine(ctx context.Context, userID uuid.UUID, f models.TicketFilter) (models.List[models.Ticket], error) {
	f.UserID = &userID
	return s.List(ctx, f)
}

func (s *SupportService) List(ctx context.Context, f models.TicketFilter) (models.List[models.Ticket], error) {
	if f.Status != "" && !f.Status.Valid() {
		return models.List[models.Ticket]{}, invalid("unknown status %q", f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return models.List[models.Ticket]{}, invalid("unknown priority %q", f.Priority)
	}
	items, total, err := s.tickets.List(ctx, f)
	if err != nil {
		return models.List[models.Ticket]{}, err
	}
	return models.NewList(items, total, f.Page), nil
}

// Get returns a ticket with its thread to its owner or an admin.
func (s *SupportService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Ticket, error) {
	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || (t.UserID != user.ID && user.Role != models.RoleAdmin) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Reply adds to the thread. Staff replies notify the ticket owner and go out
// by email; a user reply reopens a resolved ticket.
func (s *SupportService) Reply(ctx context.Context, user *models.User, id uuid.UUID, body string) (*models.TicketMessage, error) {
	t, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TicketClosed {
		return nil, invalid("ticket is closed")
	}
	staff := user.Role == models.RoleAdmin && t.UserID != user.ID
	m := &models.TicketMessage{TicketID: t.ID, AuthorID: user.ID, FromStaff: staff, Body: body}
	m.Prepare()
	if m.Body == "" {
		return nil, invalid("body must not be blank")
	}
	if err := s.tickets.AddMessage(ctx, m); err != nil {
		return nil, translate(err)
	}
	if !staff {
		return m, nil
	}

	s.notifier.Notify(ctx, t.UserID, models.NotifyTicketReply, "Support replied",
		"There is a new reply on your ticket \""+t.Subject+"\".", obj{"ticket_id": t.ID})
	if err := s.publisher.Publish(ctx, events.TicketReplied, events.TicketPayload{
		TicketID: t.ID.String(),
		UserID:   t.UserID.String(),
		Subject:  t.Subject,
		Body:     m.Body,
	}); err != nil {
		s.log.Warn("publish failed", zap.String("event", events.TicketReplied), zap.Error(err))
	}
	return m, nil
}

// Update changes status or assignee. Assignees must be admins.
func (s *SupportService) Update(ctx context.Context, adminID, id uuid.UUID, req TicketUpdateRequest) (*models.Ticket, error) {
	if req.Status == nil && req.AssigneeID == nil {
		return nil, invalid("nothing to update")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalid("unknown status %q", *req.Status)
	}
	if req.AssigneeID != nil {
		a, err := s.users.FindUserByID(ctx, *req.AssigneeID)
		if err != nil {
			return nil, err
		}
		if a == nil || a.Role != models.RoleAdmin {
			return nil, invalid("assignee must be an admin")
		}
	}
	t, err := s.tickets.Update(ctx, id, req.Status, req.AssigneeID)
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("ticket updated", zap.String("ticket_id", id.String()), zap.String("status", string(t.Status)),
		zap.String("by", adminID.String()))
	if req.Status != nil {
		s.notifier.Notify(ctx, t.UserID, models.NotifyTicketReply, "Ticket "+string(t.Status),
			"Your ticket \""+t.Subject+"\" is now "+string(t.Status)+".", obj{"ticket_id": t.ID, "status": t.Status})
	}
	return t, nil
}
