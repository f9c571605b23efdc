package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"contactbook/internal/middleware"
	"contactbook/internal/service"
)

func (h HandlerSet) NearestBirthdays(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.writeError(c, service.ErrCredentialsInvalid)
		return
	}

	daygap := service.DefaultDayGap
	if raw := c.Query("daygap"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.writeBindError(c, fmt.Errorf("daygap: must be an integer"))
			return
		}
		daygap = v
	}

	contacts, err := h.birthdays.Nearest(c.Request.Context(), user.ID, daygap)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}
