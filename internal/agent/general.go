package agent

import (
	"context"
	"log"

	"github.com/datagent-dev/datagent/internal/ai"
)

const historyWindow = 10

const generalApology = "I'm sorry, I encountered an error processing your request. Please try again."

// RunGeneral answers conversational messages with the assistant persona
// over the recent history. History loading is best effort; the reply
// provider chain (primary, then fallback) decides success.
func (a *Agent) RunGeneral(ctx context.Context, sessionID, userMessage string) Result {
	log.Printf("[GeneralAgent] processing general query for session %s", sessionID)

	var history []ai.Message
	msgs, err := a.Repo.ListSessionMessages(ctx, sessionID)
	if err != nil {
		log.Printf("[GeneralAgent] could not load history: %v", err)
	} else {
		if len(msgs) > historyWindow {
			msgs = msgs[len(msgs)-historyWindow:]
		}
		history = make([]ai.Message, 0, len(msgs))
		for _, m := range msgs {
			history = append(history, ai.Message{Role: m.Role, Content: m.Content})
		}
	}

	reply, err := a.Gen.ChatReply(ctx, userMessage, history)
	if err != nil {
		log.Printf("[GeneralAgent] reply generation failed: %v", err)
		return Result{Message: generalApology}
	}

	return Result{Message: reply, Success: true}
}
