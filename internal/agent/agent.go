// Package agent holds the intent-routed call sequences behind /api/chat.
// Each agent composes the persistence, code-generation, and sandbox
// clients into a fixed pipeline and returns a uniform Result; upstream
// failures become user-facing messages here, never HTTP errors.
package agent

import (
	"context"
	"time"

	"github.com/datagent-dev/datagent/internal/ai"
	"github.com/datagent-dev/datagent/internal/chat"
	"github.com/datagent-dev/datagent/internal/codegen"
	"github.com/datagent-dev/datagent/internal/sandbox"
)

const (
	runTimeout = 90 * time.Second

	plotOutputPath    = "/tmp/plot.png"
	cleanedOutputPath = "/tmp/cleaned_data.csv"

	// Error detail shown to the user is capped to avoid leaking large
	// stack traces.
	errorDetailLimit = 300
)

// DataStore is the slice of the chat repository the agents use.
type DataStore interface {
	LatestDataVersion(ctx context.Context, sessionID string) (*chat.DataVersion, error)
	CountDataVersions(ctx context.Context, sessionID string) (int64, error)
	CreateDataVersion(ctx context.Context, v *chat.DataVersion) error
	ListSessionMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// CodeGenerator produces scripts and replies from prompts.
type CodeGenerator interface {
	PlotCode(ctx context.Context, userRequest, dataURL, dataDescription string) (string, error)
	CleaningCode(ctx context.Context, userRequest, dataURL, dataDescription string) (string, error)
	ChatReply(ctx context.Context, userMessage string, history []ai.Message) (string, error)
}

// ObjectStore uploads result files; a thin subset of the storage client.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EventSink receives best-effort domain events. May be nil.
type EventSink interface {
	Publish(ctx context.Context, eventType, sessionID, userID string, payload map[string]any)
}

// Result is the uniform agent outcome. Exactly one artifact form is set
// on success: ImageBase64 (analysis) or FileURL+FileName (preparation).
type Result struct {
	Message     string
	ImageBase64 string
	FileURL     string
	FileName    string
	Success     bool
}

type Agent struct {
	Repo    DataStore
	Gen     CodeGenerator
	Sandbox sandbox.Runner
	Store   ObjectStore
	Events  EventSink
}

func New(repo DataStore, gen CodeGenerator, runner sandbox.Runner, store ObjectStore, events EventSink) *Agent {
	return &Agent{Repo: repo, Gen: gen, Sandbox: runner, Store: store, Events: events}
}

// Dispatch invokes exactly one agent for the classified intent. GENERAL
// is also the default for an unrecognized tag.
func (a *Agent) Dispatch(ctx context.Context, intent codegen.Intent, sessionID, userMessage string) Result {
	switch intent {
	case codegen.IntentAnalysis:
		return a.RunAnalysis(ctx, sessionID, userMessage)
	case codegen.IntentPreparation:
		return a.RunPreparation(ctx, sessionID, userMessage)
	default:
		return a.RunGeneral(ctx, sessionID, userMessage)
	}
}

func (a *Agent) publish(ctx context.Context, eventType, sessionID string, payload map[string]any) {
	if a.Events == nil {
		return
	}
	a.Events.Publish(ctx, eventType, sessionID, "", payload)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func errorDetail(exec sandbox.Execution) string {
	detail := exec.Stderr
	if detail == "" {
		detail = exec.Stdout
	}
	if detail == "" {
		detail = "Unknown error"
	}
	return truncate(detail, errorDetailLimit)
}
