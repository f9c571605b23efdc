package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contactbook/internal/models"
	"contactbook/internal/service"
)

func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauthorized(c, service.ErrCredentialsInvalid)
			return
		}

		if _, ok := roleSet[user.Role]; !ok {
			abort(c, http.StatusForbidden, service.ErrForbidden.Code, service.ErrForbidden.Message)
			return
		}

		c.Next()
	}
}
