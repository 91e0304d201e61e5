package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/codegen"
	"github.com/datagent-dev/datagent/internal/events"
	"github.com/datagent-dev/datagent/internal/httpapi/middleware"
)

// Lines of conversation handed to the classifier as context.
const classifierContextWindow = 4

const chatFallbackMessage = "I encountered an error processing your request. Please try again."

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Mode      string `json:"mode"`
}

// Chat is the main endpoint: persist the user message, resolve intent,
// run one agent, persist the assistant message, return the result.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	_ = c.ShouldBindJSON(&req)

	if req.SessionID == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: sessionId, message"})
		return
	}

	userID, _ := middleware.UserID(c)
	ctx := c.Request.Context()

	log.Printf("[ChatHandler] processing message: session=%s user=%s mode=%q", req.SessionID, userID, req.Mode)

	userMsg := &chat.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      chat.RoleUser,
		Content:   req.Message,
	}
	if err := h.Repo.CreateMessage(ctx, userMsg); err != nil {
		h.chatFailure(c, req.SessionID, err)
		return
	}

	// Context loading is best effort; the classifier works without it.
	conversationContext := ""
	if msgs, err := h.Repo.ListSessionMessages(ctx, req.SessionID); err != nil {
		log.Printf("[ChatHandler] could not load context: %v", err)
	} else {
		if len(msgs) > classifierContextWindow {
			msgs = msgs[len(msgs)-classifierContextWindow:]
		}
		lines := make([]string, 0, len(msgs))
		for _, m := range msgs {
			lines = append(lines, m.Role+": "+m.Content)
		}
		conversationContext = strings.Join(lines, "\n")
	}

	// An explicit mode hint skips the classifier entirely.
	var intent codegen.Intent
	switch req.Mode {
	case "data-analysis":
		intent = codegen.IntentAnalysis
	case "data-preparation":
		intent = codegen.IntentPreparation
	default:
		intent = h.Classifier.ClassifyIntent(ctx, req.Message, conversationContext)
	}

	log.Printf("[ChatHandler] intent classified as %s", intent)

	result := h.Agent.Dispatch(ctx, intent, req.SessionID, req.Message)

	var artifacts *chat.Artifacts
	switch intent {
	case codegen.IntentAnalysis:
		if result.ImageBase64 != "" {
			artifacts = &chat.Artifacts{ImageBase64: result.ImageBase64}
		}
	case codegen.IntentPreparation:
		if result.FileURL != "" && result.FileName != "" {
			artifacts = &chat.Artifacts{FileURL: result.FileURL, FileName: result.FileName}
		}
	}

	assistantMsg := &chat.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      chat.RoleAssistant,
		Content:   result.Message,
		Artifacts: artifacts,
	}
	if err := h.Repo.CreateMessage(ctx, assistantMsg); err != nil {
		h.chatFailure(c, req.SessionID, err)
		return
	}

	h.publish(ctx, events.TypeChatCompleted, req.SessionID, userID, map[string]any{
		"mode":         string(intent),
		"success":      result.Success,
		"hasArtifacts": artifacts != nil,
	})

	resp := gin.H{
		"assistantMessage": result.Message,
		"mode":             string(intent),
	}
	if artifacts != nil {
		a := gin.H{}
		if artifacts.ImageBase64 != "" {
			a["imageBase64"] = artifacts.ImageBase64
		}
		if artifacts.FileURL != "" {
			a["fileUrl"] = artifacts.FileURL
			a["fileName"] = artifacts.FileName
		}
		resp["artifacts"] = a
	}
	c.JSON(http.StatusOK, resp)
}

// chatFailure persists a best-effort apology for the session and exposes
// the raw error to the caller.
func (h *Handler) chatFailure(c *gin.Context, sessionID string, err error) {
	log.Printf("[ChatHandler] error: %v", err)

	fallback := &chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   chatFallbackMessage,
	}
	if saveErr := h.Repo.CreateMessage(c.Request.Context(), fallback); saveErr != nil {
		log.Printf("[ChatHandler] failed to save error message: %v", saveErr)
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
