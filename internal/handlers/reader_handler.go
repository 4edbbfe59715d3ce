package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type ReaderHandler struct {
	readerService *services.ReaderService
	reviewService *services.ReviewService
}

func NewReaderHandler(readerService *services.ReaderService, reviewService *services.ReviewService) *ReaderHandler {
	return &ReaderHandler{readerService: readerService, reviewService: reviewService}
}

// Apply handles POST /api/v1/readers/apply
func (h *ReaderHandler) Apply(c *gin.Context) {
	var req services.ReaderProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	p, err := h.readerService.Apply(c.Request.Context(), currentUser(c), req)
	if err != nil {
		fail(c, err, "Could not submit application")
		return
	}
	responses.Success(c, http.StatusCreated, p, "Application submitted")
}

func (h *ReaderHandler) GetMe(c *gin.Context) {
	p, err := h.readerService.Me(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Failed to retrieve reader profile")
		return
	}
	responses.Success(c, http.StatusOK, p, "Reader profile retrieved")
}

func (h *ReaderHandler) UpdateMe(c *gin.Context) {
	var req services.ReaderProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	p, err := h.readerService.UpdateMe(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Failed to update reader profile")
		return
	}
	responses.Success(c, http.StatusOK, p, "Reader profile updated")
}

// SetStatus handles PUT /api/v1/readers/me/status
func (h *ReaderHandler) SetStatus(c *gin.Context) {
	var req struct {
		Online *bool `json:"online" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	p, err := h.readerService.SetOnline(c.Request.Context(), currentUser(c).ID, *req.Online)
	if err != nil {
		fail(c, err, "Failed to update status")
		return
	}
	responses.Success(c, http.StatusOK, p, "Status updated")
}

// readerFilter reads the listing filters. They all apply together.
func readerFilter(c *gin.Context) (models.ReaderFilter, error) {
	f := models.ReaderFilter{
		SessionType: models.SessionType(c.Query("session_type")),
		Specialty:   c.Query("specialty"),
		Query:       c.Query("q"),
		Sort:        c.Query("sort"),
		Page:        pageQuery(c),
	}
	if v := c.Query("min_rating"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, err
		}
		f.MinRating = &r
	}
	if v := c.Query("max_price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		f.MaxPrice = &p
	}
	if v := c.Query("online"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, err
		}
		f.Online = &b
	}
	return f, nil
}

// Browse handles GET /api/v1/readers
func (h *ReaderHandler) Browse(c *gin.Context) {
	f, err := readerFilter(c)
	if err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	list, err := h.readerService.Browse(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to list readers")
		return
	}
	responses.Success(c, http.StatusOK, list, "Readers retrieved")
}

func (h *ReaderHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "reader_id")
	if !ok {
		return
	}
	p, err := h.readerService.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err, "Failed to retrieve reader")
		return
	}
	responses.Success(c, http.StatusOK, p, "Reader retrieved")
}

// Reviews handles GET /api/v1/readers/:reader_id/reviews
func (h *ReaderHandler) Reviews(c *gin.Context) {
	id, ok := uuidParam(c, "reader_id")
	if !ok {
		return
	}
	list, err := h.reviewService.ForReader(c.Request.Context(), id, pageQuery(c))
	if err != nil {
		fail(c, err, "Failed to list reviews")
		return
	}
	responses.Success(c, http.StatusOK, list, "Reviews retrieved")
}

// Admin

func (h *ReaderHandler) AdminList(c *gin.Context) {
	f, err := readerFilter(c)
	if err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	f.Status = models.ReaderStatus(c.Query("status"))
	list, err := h.readerService.ListByStatus(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to list readers")
		return
	}
	responses.Success(c, http.StatusOK, list, "Readers retrieved")
}

func (h *ReaderHandler) Approve(c *gin.Context) {
	h.changeStatus(c, h.readerService.Approve, "Reader approved")
}

func (h *ReaderHandler) Suspend(c *gin.Context) {
	h.changeStatus(c, h.readerService.Suspend, "Reader suspended")
}

func (h *ReaderHandler) Reinstate(c *gin.Context) {
	h.changeStatus(c, h.readerService.Reinstate, "Reader reinstated")
}

type readerStatusFunc func(ctx context.Context, adminID, id uuid.UUID) (*models.ReaderProfile, error)

func (h *ReaderHandler) changeStatus(c *gin.Context, change readerStatusFunc, message string) {
	id, ok := uuidParam(c, "reader_id")
	if !ok {
		return
	}
	p, err := change(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		fail(c, err, "Failed to change reader status")
		return
	}
	responses.Success(c, http.StatusOK, p, message)
}
