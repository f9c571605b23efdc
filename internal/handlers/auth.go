package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contactbook/internal/middleware"
	"contactbook/internal/service"
)

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.Snapshot())
}

// Login accepts the OAuth2 password form (username, password) as well as a
// JSON body with the same fields.
func (h HandlerSet) Login(c *gin.Context) {
	var req service.LoginInput
	if err := c.ShouldBind(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h HandlerSet) ConfirmedEmail(c *gin.Context) {
	message, err := h.auth.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse(message))
}

func (h HandlerSet) RequestEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	message, err := h.auth.RequestEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse(message))
}

func (h HandlerSet) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h HandlerSet) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.writeError(c, service.ErrCredentialsInvalid)
		return
	}
	c.JSON(http.StatusOK, messageResponse(h.auth.Logout(c.Request.Context(), user)))
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req service.ResetPasswordInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	message, err := h.auth.ResetPassword(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse(message))
}

func (h HandlerSet) ConfirmResetPassword(c *gin.Context) {
	message, err := h.auth.ConfirmResetPassword(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse(message))
}
