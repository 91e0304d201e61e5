package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/events"
	"github.com/datagent-dev/datagent/internal/httpapi/middleware"
	"github.com/datagent-dev/datagent/internal/storage"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Upload stores a raw data file as the session's v0 version.
func (h *Handler) Upload(c *gin.Context) {
	sessionID := c.PostForm("sessionId")
	fh, err := c.FormFile("file")
	if sessionID == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: sessionId, file"})
		return
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	fileName := fh.Filename
	if fileName == "" {
		fileName = "data.csv"
	}

	f, err := fh.Open()
	if err != nil {
		log.Printf("[UploadHandler] open failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Printf("[UploadHandler] read failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	ctx := c.Request.Context()

	fileURL, err := h.Store.Upload(ctx, storage.Key(sessionID, "v0", fileName), data, fh.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("[UploadHandler] storage upload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	size := fh.Size
	description := "Raw uploaded data"
	if err := h.Repo.CreateDataVersion(ctx, &chat.DataVersion{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Version:     "v0",
		FileName:    fileName,
		FileURL:     fileURL,
		FileSize:    &size,
		Description: &description,
	}); err != nil {
		log.Printf("[UploadHandler] version record failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		return
	}

	userID, _ := middleware.UserID(c)
	h.publish(ctx, events.TypeDataVersionCreated, sessionID, userID, map[string]any{
		"version":  "v0",
		"fileName": fileName,
		"fileSize": size,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"fileName": fileName,
		"fileSize": size,
		"fileUrl":  fileURL,
		"version":  "v0",
	})
}
