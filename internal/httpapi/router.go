package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/datagent-dev/datagent/internal/auth"
	"github.com/datagent-dev/datagent/internal/httpapi/handlers"
	"github.com/datagent-dev/datagent/internal/httpapi/middleware"
)

// NewRouter wires the endpoints. All collaborators are constructed by the
// caller and injected; rateCounter may be nil to disable rate limiting.
func NewRouter(h *handlers.Handler, verifier *auth.Verifier, rateCounter middleware.WindowCounter, chatRatePerMin int, corsOrigin string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("", h.APIInfo)
	api.POST("/transcribe", h.Transcribe)

	authed := api.Group("")
	authed.Use(middleware.AuthRequired(verifier))
	authed.POST("/chat", middleware.RateLimit(rateCounter, chatRatePerMin), h.Chat)
	authed.POST("/upload", h.Upload)
	authed.POST("/sessions", h.CreateSession)
	authed.GET("/sessions", h.ListSessions)
	authed.GET("/sessions/:session_id/messages", h.ListSessionMessages)
	authed.GET("/sessions/:session_id/versions", h.ListSessionVersions)

	return r
}
