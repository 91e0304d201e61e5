package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/httpapi/middleware"
)

type createSessionRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createSessionRequest
	_ = c.ShouldBindJSON(&req) // empty body means all defaults

	if req.Title == "" {
		req.Title = "New Chat"
	}
	if req.Mode == "" {
		req.Mode = chat.ModeDefault
	}

	sess := &chat.Session{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Title:              req.Title,
		Mode:               req.Mode,
		CurrentDataVersion: "v0",
	}
	if err := h.Repo.CreateSession(c.Request.Context(), sess); err != nil {
		log.Printf("[SessionHandler] create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        sess.ID,
		"title":     sess.Title,
		"mode":      sess.Mode,
		"createdAt": sess.CreatedAt,
	})
}

func (h *Handler) ListSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	sessions, err := h.Repo.ListUserSessions(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[SessionHandler] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}

	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{
			"id":                 s.ID,
			"title":              s.Title,
			"mode":               s.Mode,
			"currentDataVersion": s.CurrentDataVersion,
			"createdAt":          s.CreatedAt,
			"updatedAt":          s.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *Handler) ListSessionMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	if _, err := h.Repo.GetSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		log.Printf("[SessionHandler] session lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}

	msgs, err := h.Repo.ListSessionMessages(c.Request.Context(), sessionID)
	if err != nil {
		log.Printf("[SessionHandler] list messages failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		entry := gin.H{
			"id":        m.ID,
			"role":      m.Role,
			"content":   m.Content,
			"createdAt": m.CreatedAt,
		}
		if m.Artifacts != nil {
			entry["artifacts"] = m.Artifacts
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h *Handler) ListSessionVersions(c *gin.Context) {
	sessionID := c.Param("session_id")

	versions, err := h.Repo.ListDataVersions(c.Request.Context(), sessionID)
	if err != nil {
		log.Printf("[SessionHandler] list versions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list versions"})
		return
	}

	out := make([]gin.H, 0, len(versions))
	for _, v := range versions {
		entry := gin.H{
			"id":        v.ID,
			"version":   v.Version,
			"fileName":  v.FileName,
			"fileUrl":   v.FileURL,
			"createdAt": v.CreatedAt,
		}
		if v.FileSize != nil {
			entry["fileSize"] = *v.FileSize
		}
		if v.Description != nil {
			entry["description"] = *v.Description
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"versions": out})
}
