package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lumen-backend/internal/middlewares"
	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

// errorStatus maps a service error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrSlotUnavailable),
		errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail answers with the status for err. Unexpected errors are attached to
// the gin context for the request logger and their text is not exposed.
func fail(c *gin.Context, err error, message string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		responses.Fail(c, status, nil, message)
		return
	}
	responses.Fail(c, status, err, message)
}

func badRequest(c *gin.Context, err error, message string) {
	responses.Fail(c, http.StatusBadRequest, err, message)
}

func currentUser(c *gin.Context) *models.User {
	return middlewares.CurrentUser(c)
}

// uuidParam parses a path parameter and answers 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, nil, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func pageQuery(c *gin.Context) models.Page {
	var p models.Page
	_ = c.ShouldBindQuery(&p)
	return p.Normalize()
}

// timeQuery reads an RFC 3339 timestamp or a YYYY-MM-DD date (midnight UTC).
// A missing parameter yields the zero time.
func timeQuery(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

func optionalTime(c *gin.Context, key string) (*time.Time, error) {
	t, err := timeQuery(c, key)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

// rangeQuery reads the from/to pair shared by the report endpoints.
func rangeQuery(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := timeQuery(c, "from")
	if err != nil {
		badRequest(c, err, "Invalid from")
		return from, from, false
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		badRequest(c, err, "Invalid to")
		return from, to, false
	}
	return from, to, true
}

func intQuery(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

func optionalUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, errors.New(key + " must be a UUID")
	}
	return &id, nil
}
