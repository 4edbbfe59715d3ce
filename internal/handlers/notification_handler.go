package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications?unread=true&page&limit
func (h *NotificationHandler) List(c *gin.Context) {
	f := models.NotificationFilter{UnreadOnly: c.Query("unread") == "true", Page: pageQuery(c)}
	list, err := h.notifications.List(c.Request.Context(), currentUser(c).ID, f)
	if err != nil {
		fail(c, err, "Failed to list notifications")
		return
	}
	responses.Success(c, http.StatusOK, list, "Notifications retrieved")
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Failed to count notifications")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"unread": n}, "Unread count retrieved")
}

// MarkRead answers with the unread count after the update.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := uuidParam(c, "notification_id")
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		fail(c, err, "Could not mark notification read")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"unread": n}, "Notification marked read")
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, unread, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Could not mark notifications read")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"updated": updated, "unread": unread}, "Notifications marked read")
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "notification_id")
	if !ok {
		return
	}
	n, err := h.notifications.Delete(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		fail(c, err, "Could not delete notification")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"unread": n}, "Notification deleted")
}

func (h *NotificationHandler) Preferences(c *gin.Context) {
	p, err := h.notifications.Preferences(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Failed to retrieve preferences")
		return
	}
	responses.Success(c, http.StatusOK, p, "Preferences retrieved")
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req services.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	p, err := h.notifications.UpdatePreferences(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not save preferences")
		return
	}
	responses.Success(c, http.StatusOK, p, "Preferences saved")
}
