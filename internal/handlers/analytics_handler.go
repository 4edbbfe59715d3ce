package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview handles GET /api/admin/analytics/overview?from&to
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	out, err := h.analytics.Overview(c.Request.Context(), from, to)
	if err != nil {
		fail(c, err, "Failed to build overview")
		return
	}
	responses.Success(c, http.StatusOK, out, "Overview retrieved")
}

// Revenue handles GET /api/admin/analytics/revenue?from&to&interval
func (h *AnalyticsHandler) Revenue(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	out, err := h.analytics.Revenue(c.Request.Context(), from, to, c.Query("interval"))
	if err != nil {
		fail(c, err, "Failed to build revenue series")
		return
	}
	responses.Success(c, http.StatusOK, out, "Revenue retrieved")
}

// TopReaders handles GET /api/admin/analytics/top-readers?from&to&limit
func (h *AnalyticsHandler) TopReaders(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	out, err := h.analytics.TopReaders(c.Request.Context(), from, to, intQuery(c, "limit", 0))
	if err != nil {
		fail(c, err, "Failed to rank readers")
		return
	}
	responses.Success(c, http.StatusOK, out, "Top readers retrieved")
}
