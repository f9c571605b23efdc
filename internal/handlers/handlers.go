package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contactbook/internal/config"
	"contactbook/internal/middleware"
	"contactbook/internal/models"
	"contactbook/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Birthdays *service.BirthdayService
	Resolver  middleware.Resolver
	Database  Pinger
	Cache     Pinger
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	auth      *service.AuthService
	users     *service.UserService
	birthdays *service.BirthdayService
	resolver  middleware.Resolver
	database  Pinger
	cache     Pinger
	meLimiter *middleware.IPRateLimiter
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		auth:      deps.Auth,
		users:     deps.Users,
		birthdays: deps.Birthdays,
		resolver:  deps.Resolver,
		database:  deps.Database,
		cache:     deps.Cache,
		meLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.MePerMinute),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireUser := middleware.Auth(h.resolver)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.GET("/confirmed_email/:token", h.ConfirmedEmail)
		auth.POST("/request_email", h.RequestEmail)
		auth.POST("/token/refresh", h.RefreshToken)
		auth.POST("/logout", requireUser, h.Logout)
		auth.POST("/reset_password", h.ResetPassword)
		auth.GET("/confirm_reset_password/:token", h.ConfirmResetPassword)
	}

	users := router.Group("/users")
	users.Use(requireUser)
	{
		users.GET("/me", middleware.RateLimit(h.meLimiter), h.Me)
		users.PATCH("/avatar", h.UpdateAvatar)
	}

	birthdays := router.Group("/birthdays")
	birthdays.Use(requireUser)
	birthdays.GET("/nearest", h.NearestBirthdays)

	admin := router.Group("/admin")
	admin.Use(requireUser, middleware.RequireRoles(models.UserRoleAdmin))
	admin.DELETE("/users/:id/sessions", h.RevokeUserSessions)
}

func messageResponse(message string) gin.H {
	return gin.H{"message": message}
}
