package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Transcribe converts an uploaded audio clip to text.
func (h *Handler) Transcribe(c *gin.Context) {
	fh, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing audio file"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		log.Printf("[TranscribeHandler] open failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transcription failed"})
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		log.Printf("[TranscribeHandler] read failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transcription failed"})
		return
	}

	transcript, err := h.Transcriber.Transcribe(c.Request.Context(), fh.Filename, audio)
	if err != nil {
		log.Printf("[TranscribeHandler] transcription failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Transcription failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transcript": transcript,
		"language":   "en",
	})
}
