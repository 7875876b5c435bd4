package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskflow/internal/config"
	"taskflow/internal/middleware"
	"taskflow/internal/models"
	"taskflow/internal/service"
)

type Services struct {
	Auth          *service.AuthService
	Tasks         *service.TaskService
	Users         *service.UserService
	Projects      *service.ProjectService
	Notifications *service.NotificationService
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	svc      Services
	resolver middleware.IdentityResolver
	cache    *redis.Client
	checks   []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, svc Services, cache *redis.Client, checks ...HealthCheck) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		svc:      svc,
		resolver: svc.Auth,
		cache:    cache,
		checks:   checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/login",
		middleware.LoginThrottle(h.cache, h.cfg.Security.LoginAttempts, h.cfg.Security.LoginWindow, h.log),
		h.Login,
	)
	auth.POST("/logout", h.Logout)
	auth.GET("/check", h.Check)

	protected := v1.Group("")
	protected.Use(middleware.Auth(h.cfg.Security, h.resolver))
	adminOnly := middleware.RequireRoles(models.UserRoleAdmin)

	protected.GET("/auth/me", h.Me)

	tasks := protected.Group("/tasks")
	tasks.GET("", h.ListTasks)
	tasks.GET("/:id", h.GetTask)
	tasks.POST("", adminOnly, h.CreateTask)
	tasks.PATCH("/:id", h.UpdateTask)
	tasks.PUT("/:id", h.UpdateTask)
	tasks.DELETE("/:id", adminOnly, h.DeleteTask)

	users := protected.Group("/users")
	users.GET("", adminOnly, h.ListUsers)
	users.POST("", adminOnly, h.CreateUser)
	users.GET("/:id", h.GetUser)
	users.PATCH("/:id", h.UpdateUser)
	users.DELETE("/:id", adminOnly, h.DeleteUser)

	projects := protected.Group("/projects")
	projects.GET("", h.ListProjects)
	projects.GET("/:id", h.GetProject)
	projects.POST("", adminOnly, h.CreateProject)
	projects.PATCH("/:id", adminOnly, h.UpdateProject)
	projects.DELETE("/:id", adminOnly, h.DeleteProject)

	notifications := protected.Group("/notifications")
	notifications.GET("", h.ListNotifications)
	notifications.GET("/unread-count", h.UnreadCount)
	notifications.POST("/read-all", h.MarkAllRead)
	notifications.POST("/:id/read", h.MarkRead)
}

// caller returns the identity set by the Auth middleware. Handlers are only
// mounted behind it, so a missing identity yields an empty one that every
// policy decision rejects.
func caller(c *gin.Context) models.Identity {
	identity, _ := middleware.IdentityFrom(c)
	return identity
}
