package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type SessionHandler struct {
	bookings *services.BookingService
}

func NewSessionHandler(bookings *services.BookingService) *SessionHandler {
	return &SessionHandler{bookings: bookings}
}

// Book handles POST /api/v1/sessions
func (h *SessionHandler) Book(c *gin.Context) {
	var req services.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	s, err := h.bookings.Book(c.Request.Context(), currentUser(c), req)
	if err != nil {
		fail(c, err, "Could not book session")
		return
	}
	responses.Success(c, http.StatusCreated, s, "Session booked")
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	f := models.SessionFilter{Status: models.SessionStatus(c.Query("status")), Page: pageQuery(c)}
	if !from.IsZero() {
		f.From = &from
	}
	if !to.IsZero() {
		f.To = &to
	}
	list, err := h.bookings.List(c.Request.Context(), currentUser(c), f)
	if err != nil {
		fail(c, err, "Failed to list sessions")
		return
	}
	responses.Success(c, http.StatusOK, list, "Sessions retrieved")
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}
	s, err := h.bookings.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err, "Failed to retrieve session")
		return
	}
	responses.Success(c, http.StatusOK, s, "Session retrieved")
}

type sessionAction func(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error)

func (h *SessionHandler) act(c *gin.Context, action sessionAction, message string) {
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}
	s, err := action(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err, "Could not update session")
		return
	}
	responses.Success(c, http.StatusOK, s, message)
}

func (h *SessionHandler) Confirm(c *gin.Context) {
	h.act(c, h.bookings.Confirm, "Session confirmed")
}

func (h *SessionHandler) Start(c *gin.Context) {
	h.act(c, h.bookings.Start, "Session started")
}

func (h *SessionHandler) Complete(c *gin.Context) {
	h.act(c, h.bookings.Complete, "Session completed")
}

// Decline and Cancel take an optional {"reason": "..."} body.

func (h *SessionHandler) Decline(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	h.act(c, func(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
		return h.bookings.Decline(ctx, user, id, reason)
	}, "Session declined")
}

func (h *SessionHandler) Cancel(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	h.act(c, func(ctx context.Context, user *models.User, id uuid.UUID) (*models.Session, error) {
		return h.bookings.Cancel(ctx, user, id, reason)
	}, "Session cancelled")
}

func bindReason(c *gin.Context) (string, bool) {
	var req services.CancelRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return "", false
	}
	return req.Reason, true
}
