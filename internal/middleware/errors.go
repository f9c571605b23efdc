package middleware

import (
	"github.com/gin-gonic/gin"
)

const currentUserKey = "current_user"

func abort(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":  code,
		"detail": detail,
	})
}
