package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contactbook/internal/service"
)

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindBadRequest:
		return http.StatusBadRequest
	case service.KindInvalid:
		return http.StatusUnprocessableEntity
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h HandlerSet) writeError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) || svcErr.Kind == service.KindInternal {
		h.log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Msg("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":  "INTERNAL_ERROR",
			"detail": "Internal server error",
		})
		return
	}

	status := statusFor(svcErr.Kind)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":  svcErr.Code,
		"detail": svcErr.Message,
	})
}

func (h HandlerSet) writeBindError(c *gin.Context, err error) {
	h.writeError(c, &service.Error{
		Kind:    service.KindInvalid,
		Code:    service.ErrValidation.Code,
		Message: err.Error(),
		Err:     err,
	})
}
