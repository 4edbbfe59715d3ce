package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type SupportHandler struct {
	support *services.SupportService
}

func NewSupportHandler(support *services.SupportService) *SupportHandler {
	return &SupportHandler{support: support}
}

func ticketFilter(c *gin.Context) models.TicketFilter {
	return models.TicketFilter{
		Status:   models.TicketStatus(c.Query("status")),
		Priority: models.TicketPriority(c.Query("priority")),
		Category: c.Query("category"),
		Page:     pageQuery(c),
	}
}

// Create handles POST /api/v1/support/tickets
func (h *SupportHandler) Create(c *gin.Context) {
	var req services.TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	t, err := h.support.Create(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not open ticket")
		return
	}
	responses.Success(c, http.StatusCreated, t, "Ticket opened")
}

func (h *SupportHandler) Mine(c *gin.Context) {
	list, err := h.support.Mine(c.Request.Context(), currentUser(c).ID, ticketFilter(c))
	if err != nil {
		fail(c, err, "Failed to list tickets")
		return
	}
	responses.Success(c, http.StatusOK, list, "Tickets retrieved")
}

func (h *SupportHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "ticket_id")
	if !ok {
		return
	}
	t, err := h.support.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err, "Failed to retrieve ticket")
		return
	}
	responses.Success(c, http.StatusOK, t, "Ticket retrieved")
}

// Reply is shared by users and admins; admin replies count as staff
// replies.
func (h *SupportHandler) Reply(c *gin.Context) {
	id, ok := uuidParam(c, "ticket_id")
	if !ok {
		return
	}
	var req services.TicketReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	m, err := h.support.Reply(c.Request.Context(), currentUser(c), id, req.Body)
	if err != nil {
		fail(c, err, "Could not reply")
		return
	}
	responses.Success(c, http.StatusCreated, m, "Reply added")
}

// AdminList handles GET /api/admin/support/tickets
func (h *SupportHandler) AdminList(c *gin.Context) {
	f := ticketFilter(c)
	var err error
	if f.AssigneeID, err = optionalUUID(c, "assignee_id"); err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	if f.UserID, err = optionalUUID(c, "user_id"); err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	list, err := h.support.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to list tickets")
		return
	}
	responses.Success(c, http.StatusOK, list, "Tickets retrieved")
}

func (h *SupportHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "ticket_id")
	if !ok {
		return
	}
	var req services.TicketUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	t, err := h.support.Update(c.Request.Context(), currentUser(c).ID, id, req)
	if err != nil {
		fail(c, err, "Could not update ticket")
		return
	}
	responses.Success(c, http.StatusOK, t, "Ticket updated")
}
