package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type GiftHandler struct {
	gifts *services.GiftService
}

func NewGiftHandler(gifts *services.GiftService) *GiftHandler {
	return &GiftHandler{gifts: gifts}
}

// Catalog handles GET /api/virtual-gifts (active gifts only).
func (h *GiftHandler) Catalog(c *gin.Context) {
	h.catalog(c, true)
}

// AdminCatalog includes retired gifts.
func (h *GiftHandler) AdminCatalog(c *gin.Context) {
	h.catalog(c, false)
}

func (h *GiftHandler) catalog(c *gin.Context, activeOnly bool) {
	out, err := h.gifts.Catalog(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, err, "Failed to list gifts")
		return
	}
	responses.Success(c, http.StatusOK, out, "Gifts retrieved")
}

func (h *GiftHandler) Create(c *gin.Context) {
	var req services.GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	g, err := h.gifts.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err, "Could not create gift")
		return
	}
	responses.Success(c, http.StatusCreated, g, "Gift created")
}

func (h *GiftHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "gift_id")
	if !ok {
		return
	}
	var req services.GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	g, err := h.gifts.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err, "Could not update gift")
		return
	}
	responses.Success(c, http.StatusOK, g, "Gift updated")
}

// SetActive handles PATCH /api/virtual-gifts/:gift_id/active
func (h *GiftHandler) SetActive(c *gin.Context) {
	id, ok := uuidParam(c, "gift_id")
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	g, err := h.gifts.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		fail(c, err, "Could not update gift")
		return
	}
	responses.Success(c, http.StatusOK, g, "Gift updated")
}

func (h *GiftHandler) Send(c *gin.Context) {
	var req services.SendGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	gt, err := h.gifts.Send(c.Request.Context(), currentUser(c), req)
	if err != nil {
		fail(c, err, "Could not send gift")
		return
	}
	responses.Success(c, http.StatusCreated, gt, "Gift sent")
}

func (h *GiftHandler) Received(c *gin.Context) {
	list, err := h.gifts.Received(c.Request.Context(), currentUser(c).ID, pageQuery(c))
	if err != nil {
		fail(c, err, "Failed to list gifts")
		return
	}
	responses.Success(c, http.StatusOK, list, "Gifts retrieved")
}

func (h *GiftHandler) Sent(c *gin.Context) {
	list, err := h.gifts.Sent(c.Request.Context(), currentUser(c).ID, pageQuery(c))
	if err != nil {
		fail(c, err, "Failed to list gifts")
		return
	}
	responses.Success(c, http.StatusOK, list, "Gifts retrieved")
}

// Leaderboard handles GET /api/virtual-gifts/leaderboard?period=all|week|month&limit
func (h *GiftHandler) Leaderboard(c *gin.Context) {
	out, err := h.gifts.Leaderboard(c.Request.Context(), c.Query("period"), intQuery(c, "limit", 0))
	if err != nil {
		fail(c, err, "Failed to load leaderboard")
		return
	}
	responses.Success(c, http.StatusOK, out, "Leaderboard retrieved")
}
