// Package handlers holds the HTTP endpoints. Response bodies are flat
// JSON objects; errors carry a single "error" string.
package handlers

import (
	"context"

	"github.com/datagent-dev/datagent/internal/agent"
	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/codegen"
	"github.com/datagent-dev/datagent/internal/storage"
	"github.com/datagent-dev/datagent/internal/transcribe"
)

// IntentClassifier resolves a chat message to an intent tag. It never
// fails; classification errors degrade to GENERAL inside the
// implementation.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, message, conversationContext string) codegen.Intent
}

// Dispatcher runs exactly one agent for a classified intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent codegen.Intent, sessionID, userMessage string) agent.Result
}

// EventSink receives best-effort domain events. May be nil.
type EventSink interface {
	Publish(ctx context.Context, eventType, sessionID, userID string, payload map[string]any)
}

type Handler struct {
	Repo        *chat.Repo
	Classifier  IntentClassifier
	Agent       Dispatcher
	Store       storage.ObjectStore
	Transcriber transcribe.Transcriber
	Events      EventSink
}

func NewHandler(repo *chat.Repo, classifier IntentClassifier, dispatcher Dispatcher, store storage.ObjectStore, transcriber transcribe.Transcriber, events EventSink) *Handler {
	return &Handler{
		Repo:        repo,
		Classifier:  classifier,
		Agent:       dispatcher,
		Store:       store,
		Transcriber: transcriber,
		Events:      events,
	}
}

func (h *Handler) publish(ctx context.Context, eventType, sessionID, userID string, payload map[string]any) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(ctx, eventType, sessionID, userID, payload)
}
