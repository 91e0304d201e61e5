// Package codegen turns user requests into classifier verdicts, Python
// scripts, and conversational replies through a single prompted-generation
// path over a text provider, with per-call prompt templates and
// post-processing.
package codegen

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/datagent-dev/datagent/internal/ai"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentAnalysis    Intent = "ANALYSIS"
	IntentPreparation Intent = "PREPARATION"
	IntentGeneral     Intent = "GENERAL"
)

// Generator composes prompt templates over a primary text provider.
// Fallback, when non-nil, is tried for conversational replies if the
// primary fails; code generation has no fallback.
type Generator struct {
	Primary  ai.Provider
	Fallback ai.Provider
}

func New(primary, fallback ai.Provider) *Generator {
	return &Generator{Primary: primary, Fallback: fallback}
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	return g.Primary.Chat(ctx, []ai.Message{{Role: "user", Content: prompt}})
}

// ClassifyIntent returns one of ANALYSIS, PREPARATION, GENERAL for the
// given message. Any provider failure degrades silently to GENERAL; a
// misrouted message is cheaper than a failed request.
func (g *Generator) ClassifyIntent(ctx context.Context, message, conversationContext string) Intent {
	contextBlock := ""
	if conversationContext != "" {
		contextBlock = fmt.Sprintf("Previous conversation context:\n%s\n", conversationContext)
	}

	prompt := fmt.Sprintf(classifyPrompt, contextBlock, message)

	text, err := g.generate(ctx, prompt)
	if err != nil {
		log.Printf("[Codegen] intent classification failed: %v", err)
		return IntentGeneral
	}

	upper := strings.ToUpper(strings.TrimSpace(text))
	if strings.Contains(upper, "ANALYSIS") {
		return IntentAnalysis
	}
	if strings.Contains(upper, "PREPARATION") {
		return IntentPreparation
	}
	return IntentGeneral
}

// PlotCode generates a Python script that renders a plot of the data at
// dataURL to /tmp/plot.png.
func (g *Generator) PlotCode(ctx context.Context, userRequest, dataURL, dataDescription string) (string, error) {
	descBlock := ""
	if dataDescription != "" {
		descBlock = fmt.Sprintf("DATA DESCRIPTION: %s\n", dataDescription)
	}

	text, err := g.generate(ctx, fmt.Sprintf(plotPrompt, dataURL, descBlock, userRequest))
	if err != nil {
		return "", fmt.Errorf("generate plot code: %w", err)
	}
	return stripCodeFences(text), nil
}

// CleaningCode generates a Python script that cleans/transforms the data at
// dataURL and writes the result to /tmp/cleaned_data.csv.
func (g *Generator) CleaningCode(ctx context.Context, userRequest, dataURL, dataDescription string) (string, error) {
	descBlock := ""
	if dataDescription != "" {
		descBlock = fmt.Sprintf("DATA DESCRIPTION: %s\n", dataDescription)
	}

	text, err := g.generate(ctx, fmt.Sprintf(cleaningPrompt, dataURL, descBlock, userRequest))
	if err != nil {
		return "", fmt.Errorf("generate cleaning code: %w", err)
	}
	return stripCodeFences(text), nil
}

// ChatReply generates a conversational answer under the assistant persona,
// seeding the exchange with the persona hand-shake and the recent history.
// The fallback provider is tried when the primary fails.
func (g *Generator) ChatReply(ctx context.Context, userMessage string, history []ai.Message) (string, error) {
	messages := make([]ai.Message, 0, len(history)+3)
	messages = append(messages,
		ai.Message{Role: "user", Content: chatPersona},
		ai.Message{Role: "assistant", Content: chatPersonaAck},
	)
	messages = append(messages, history...)
	messages = append(messages, ai.Message{Role: "user", Content: userMessage})

	reply, err := g.Primary.Chat(ctx, messages)
	if err == nil {
		return reply, nil
	}
	log.Printf("[Codegen] primary chat reply failed: %v", err)

	if g.Fallback == nil {
		return "", fmt.Errorf("generate chat reply: %w", err)
	}

	reply, fbErr := g.Fallback.Chat(ctx, messages)
	if fbErr != nil {
		log.Printf("[Codegen] fallback chat reply failed: %v", fbErr)
		return "", fmt.Errorf("generate chat reply: %w", fbErr)
	}
	return reply, nil
}

// stripCodeFences removes markdown code-block markers the model sometimes
// wraps around generated scripts despite being told not to.
func stripCodeFences(code string) string {
	code = strings.ReplaceAll(code, "```python\n", "")
	code = strings.ReplaceAll(code, "```python", "")
	code = strings.ReplaceAll(code, "```\n", "")
	code = strings.ReplaceAll(code, "```", "")
	return strings.TrimSpace(code)
}
