package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	responses.Success(c, http.StatusOK, currentUser(c), "User retrieved successfully")
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Failed to update user")
		return
	}
	responses.Success(c, http.StatusOK, user, "User updated successfully")
}

// DeleteMe handles DELETE /api/v1/users/me
func (h *UserHandler) DeleteMe(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), currentUser(c).ID); err != nil {
		fail(c, err, "Failed to delete user")
		return
	}
	responses.Success(c, http.StatusOK, nil, "User deleted successfully")
}

// ListUsers handles GET /api/admin/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	f := models.UserFilter{
		Role:   models.Role(c.Query("role")),
		Status: models.UserStatus(c.Query("status")),
		Query:  c.Query("q"),
		Page:   pageQuery(c),
	}
	users, err := h.userService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to retrieve users")
		return
	}
	responses.Success(c, http.StatusOK, users, "Users retrieved successfully")
}

// GetUser handles GET /api/admin/users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "Failed to retrieve user")
		return
	}
	responses.Success(c, http.StatusOK, user, "User retrieved successfully")
}

// UpdateUser handles PATCH /api/admin/users/:user_id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req services.UpdateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateAccess(c.Request.Context(), currentUser(c).ID, id, req)
	if err != nil {
		fail(c, err, "Failed to update user")
		return
	}
	responses.Success(c, http.StatusOK, user, "User updated successfully")
}
