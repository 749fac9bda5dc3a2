package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/parley/internal/auth"
	"github.com/vovakirdan/parley/internal/config"
	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/store"
)

// NewServer builds an HTTP server with the REST API and the WebSocket endpoint.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, authService, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires routes and middleware.
func NewRouter(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, cfg, logger)))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, hub, authService, logger)
	groupHandlers := NewGroupHandlers(st, hub, logger)
	adminHandlers := NewAdminHandlers(st, hub, authService, logger)

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(cfg.HTTPRateLimit, cfg.HTTPRateWindow))

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", apiHandlers.Signup)
	authGroup.POST("/login", apiHandlers.Login)
	authGroup.GET("/verify-email", apiHandlers.VerifyEmail)
	authGroup.POST("/forgot-password", apiHandlers.ForgotPassword)
	authGroup.POST("/reset-password", apiHandlers.ResetPassword)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))

	users := protected.Group("/users")
	users.GET("/profile", userHandlers.Profile)
	users.PUT("/profile", userHandlers.UpdateProfile)
	users.PUT("/change-password", userHandlers.ChangePassword)
	users.GET("", userHandlers.ListUsers)
	users.GET("/:userId/messages", userHandlers.PrivateHistory)
	users.POST("/:userId/messages", userHandlers.SendPrivate)

	groups := protected.Group("/groups")
	groups.GET("", groupHandlers.ListGroups)
	groups.POST("", groupHandlers.CreateGroup)
	groups.GET("/:id", groupHandlers.GetGroup)
	groups.POST("/:id/join", groupHandlers.JoinGroup)
	groups.POST("/:id/leave", groupHandlers.LeaveGroup)
	groups.GET("/:id/messages", groupHandlers.GroupHistory)
	groups.POST("/:id/messages", groupHandlers.SendGroupMessage)

	admin := protected.Group("/admin")
	admin.Use(RequireRole(store.RoleAdmin))
	admin.GET("/stats", adminHandlers.Stats)
	admin.GET("/users", adminHandlers.ListUsers)
	admin.POST("/users", adminHandlers.CreateAdmin)
	admin.GET("/users/:id", adminHandlers.GetUser)
	admin.PUT("/users/:id", adminHandlers.UpdateUser)
	admin.DELETE("/users/:id", adminHandlers.DeleteUser)

	return router
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
}
