package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripconnect/tripchat-server/internal/auth"
	"github.com/tripconnect/tripchat-server/internal/chat"
	"github.com/tripconnect/tripchat-server/internal/config"
)

// NewServer builds the HTTP server: auth endpoints, health, and the
// WebSocket entry point.
func NewServer(svc *chat.Service, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	authHandlers := &AuthHandlers{auth: authService, log: logger}
	api := router.Group("/api")
	api.POST("/auth/register", authHandlers.Register)
	api.POST("/auth/login", authHandlers.Login)
	api.POST("/auth/guest", authHandlers.Guest)

	chatHandlers := &ChatHandlers{svc: svc, log: logger}
	protected := api.Group("", AuthMiddleware(authService, logger))
	protected.GET("/conversations", chatHandlers.Conversations)

	wsHandler := NewWSHandler(svc, authService, logger)
	router.GET("/ws", wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
