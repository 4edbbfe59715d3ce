package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type AvailabilityHandler struct {
	availability *services.AvailabilityService
}

func NewAvailabilityHandler(availability *services.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// GetRules handles GET /api/v1/readers/me/availability
func (h *AvailabilityHandler) GetRules(c *gin.Context) {
	rules, err := h.availability.Rules(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Failed to retrieve availability")
		return
	}
	responses.Success(c, http.StatusOK, rules, "Availability retrieved")
}

// ReplaceRules handles PUT /api/v1/readers/me/availability. The body
// replaces the whole weekly schedule.
func (h *AvailabilityHandler) ReplaceRules(c *gin.Context) {
	var req struct {
		Rules []services.RuleRequest `json:"rules" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	rules, err := h.availability.ReplaceRules(c.Request.Context(), currentUser(c).ID, req.Rules)
	if err != nil {
		fail(c, err, "Failed to save availability")
		return
	}
	responses.Success(c, http.StatusOK, rules, "Availability saved")
}

func (h *AvailabilityHandler) ListExceptions(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	out, err := h.availability.Exceptions(c.Request.Context(), currentUser(c).ID, from, to)
	if err != nil {
		fail(c, err, "Failed to retrieve exceptions")
		return
	}
	responses.Success(c, http.StatusOK, out, "Exceptions retrieved")
}

func (h *AvailabilityHandler) AddException(c *gin.Context) {
	var req services.ExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	e, err := h.availability.AddException(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Failed to add exception")
		return
	}
	responses.Success(c, http.StatusCreated, e, "Exception added")
}

func (h *AvailabilityHandler) DeleteException(c *gin.Context) {
	id, ok := uuidParam(c, "exception_id")
	if !ok {
		return
	}
	if err := h.availability.DeleteException(c.Request.Context(), currentUser(c).ID, id); err != nil {
		fail(c, err, "Failed to delete exception")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Exception deleted")
}

// Slots handles GET /api/v1/readers/:reader_id/slots
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	id, ok := uuidParam(c, "reader_id")
	if !ok {
		return
	}
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	res, err := h.availability.Slots(c.Request.Context(), id, services.SlotQuery{
		From:        from,
		To:          to,
		SessionType: models.SessionType(c.Query("session_type")),
		Timezone:    c.Query("tz"),
		View:        c.Query("view"),
	})
	if err != nil {
		fail(c, err, "Failed to compute slots")
		return
	}
	responses.Success(c, http.StatusOK, res, "Slots retrieved")
}
