package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a text-generation service: prompt messages in, text out.
// Calls may fail; callers decide whether that is fatal.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
