package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
)

// RequireRole lets the request through when the authenticated user has one
// of roles. Use it after Authenticate.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			responses.Abort(c, http.StatusUnauthorized, nil, "Unauthorized")
			return
		}
		if !user.HasRole(roles...) {
			responses.Abort(c, http.StatusForbidden, nil, "Access denied")
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}
