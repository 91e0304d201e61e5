package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) APIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Datagent API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"health":     "GET /health",
			"chat":       "POST /api/chat",
			"upload":     "POST /api/upload",
			"transcribe": "POST /api/transcribe",
			"sessions":   "POST /api/sessions",
		},
	})
}
