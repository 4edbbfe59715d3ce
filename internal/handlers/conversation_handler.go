package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type ConversationHandler struct {
	messaging *services.MessagingService
}

func NewConversationHandler(messaging *services.MessagingService) *ConversationHandler {
	return &ConversationHandler{messaging: messaging}
}

// Open handles POST /api/v1/conversations. It returns the existing
// conversation when there is one.
func (h *ConversationHandler) Open(c *gin.Context) {
	var req services.OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	conv, err := h.messaging.Open(c.Request.Context(), currentUser(c).ID, req.ReaderID)
	if err != nil {
		fail(c, err, "Could not open conversation")
		return
	}
	responses.Success(c, http.StatusOK, conv, "Conversation ready")
}

func (h *ConversationHandler) List(c *gin.Context) {
	list, err := h.messaging.List(c.Request.Context(), currentUser(c).ID, pageQuery(c))
	if err != nil {
		fail(c, err, "Failed to list conversations")
		return
	}
	responses.Success(c, http.StatusOK, list, "Conversations retrieved")
}

// Messages handles GET /api/v1/conversations/:conversation_id/messages?before&limit
func (h *ConversationHandler) Messages(c *gin.Context) {
	id, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	before, err := optionalTime(c, "before")
	if err != nil {
		badRequest(c, err, "Invalid before")
		return
	}
	msgs, err := h.messaging.Messages(c.Request.Context(), currentUser(c).ID, id, before, intQuery(c, "limit", 0))
	if err != nil {
		fail(c, err, "Failed to retrieve messages")
		return
	}
	responses.Success(c, http.StatusOK, msgs, "Messages retrieved")
}

func (h *ConversationHandler) Send(c *gin.Context) {
	id, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	m, err := h.messaging.Send(c.Request.Context(), currentUser(c).ID, id, req.Body)
	if err != nil {
		fail(c, err, "Could not send message")
		return
	}
	responses.Success(c, http.StatusCreated, m, "Message sent")
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	id, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	n, err := h.messaging.MarkRead(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		fail(c, err, "Could not mark messages read")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"updated": n}, "Messages marked read")
}
