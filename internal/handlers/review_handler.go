package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create handles POST /api/v1/reviews
func (h *ReviewHandler) Create(c *gin.Context) {
	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	rv, err := h.reviews.Create(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not save review")
		return
	}
	responses.Success(c, http.StatusCreated, rv, "Review saved")
}

// Respond handles POST /api/v1/reviews/:review_id/response
func (h *ReviewHandler) Respond(c *gin.Context) {
	id, ok := uuidParam(c, "review_id")
	if !ok {
		return
	}
	var req services.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	rv, err := h.reviews.Respond(c.Request.Context(), currentUser(c).ID, id, req.Response)
	if err != nil {
		fail(c, err, "Could not save response")
		return
	}
	responses.Success(c, http.StatusOK, rv, "Response saved")
}

// AdminList handles GET /api/admin/reviews?status&reader_id
func (h *ReviewHandler) AdminList(c *gin.Context) {
	f := models.ReviewFilter{Status: models.ReviewStatus(c.Query("status")), Page: pageQuery(c)}
	var err error
	if f.ReaderID, err = optionalUUID(c, "reader_id"); err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	list, err := h.reviews.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to list reviews")
		return
	}
	responses.Success(c, http.StatusOK, list, "Reviews retrieved")
}

func (h *ReviewHandler) Moderate(c *gin.Context) {
	id, ok := uuidParam(c, "review_id")
	if !ok {
		return
	}
	var req struct {
		Status models.ReviewStatus `json:"status" binding:"required,oneof=published hidden flagged"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	rv, err := h.reviews.Moderate(c.Request.Context(), currentUser(c).ID, id, req.Status)
	if err != nil {
		fail(c, err, "Could not moderate review")
		return
	}
	responses.Success(c, http.StatusOK, rv, "Review updated")
}
