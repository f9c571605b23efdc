package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contactbook/internal/middleware"
	"contactbook/internal/service"
)

// multipart overhead allowed on top of the avatar size limit
const multipartSlack = 1 << 20

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.writeError(c, service.ErrCredentialsInvalid)
		return
	}
	c.JSON(http.StatusOK, h.users.Me(user))
}

func (h HandlerSet) UpdateAvatar(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.writeError(c, service.ErrCredentialsInvalid)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Storage.MaxAvatarSize+multipartSlack)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, service.ErrAvatarTooLarge)
			return
		}
		h.writeBindError(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	snapshot, err := h.users.UpdateAvatar(c.Request.Context(), user, file)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h HandlerSet) RevokeUserSessions(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		h.writeError(c, service.ErrCredentialsInvalid)
		return
	}

	if err := h.users.RevokeSessions(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse(service.MsgSessionsRevoked))
}
