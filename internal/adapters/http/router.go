package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ubaish01/commune-backend/internal/adapters/signal"
	"github.com/ubaish01/commune-backend/internal/config"
)

// ClientTokenMiddleware tags every browser with a long-lived token cookie.
// Signaling connections get their own per-connection id; this token only
// identifies the client across reconnects for logs and future auth.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the health surface and the signaling WebSocket endpoint.
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CommuneSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Yes sirrr! Its working fineee!",
		})
	})

	api := r.Group("/api/v1")

	api.GET("/user", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Welcome to the API",
		})
	})

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"announcedIP": cfg.AnnouncedIP,
		})
	})

	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}
