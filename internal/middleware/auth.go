package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contactbook/internal/models"
	"contactbook/internal/service"
)

type Resolver interface {
	Resolve(ctx context.Context, bearer string) (models.User, error)
}

// Auth resolves the bearer token and stores the user under "current_user".
func Auth(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, tokenStr, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			unauthorized(c, service.ErrCredentialsInvalid)
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), strings.TrimSpace(tokenStr))
		if err != nil {
			var svcErr *service.Error
			if errors.As(err, &svcErr) && svcErr.Kind == service.KindUnauthorized {
				unauthorized(c, svcErr)
				return
			}
			abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func unauthorized(c *gin.Context, err *service.Error) {
	c.Header("WWW-Authenticate", "Bearer")
	abort(c, http.StatusUnauthorized, err.Code, err.Message)
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
