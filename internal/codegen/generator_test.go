package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/datagent-dev/datagent/internal/ai"
)

type scriptedProvider struct {
	reply string
	err   error
	calls int
	last  []ai.Message
}

func (p *scriptedProvider) Chat(_ context.Context, messages []ai.Message) (string, error) {
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func TestClassifyIntentMatchesSubstringsCaseInsensitive(t *testing.T) {
	cases := []struct {
		reply string
		want  Intent
	}{
		{"ANALYSIS", IntentAnalysis},
		{"  analysis\n", IntentAnalysis},
		{"The intent is PREPARATION.", IntentPreparation},
		{"preparation", IntentPreparation},
		{"GENERAL", IntentGeneral},
		{"no idea", IntentGeneral},
	}

	for _, tc := range cases {
		g := New(&scriptedProvider{reply: tc.reply}, nil)
		if got := g.ClassifyIntent(context.Background(), "msg", ""); got != tc.want {
			t.Fatalf("reply %q: expected %s, got %s", tc.reply, tc.want, got)
		}
	}
}

func TestClassifyIntentFailsOpenToGeneral(t *testing.T) {
	g := New(&scriptedProvider{err: errors.New("provider down")}, nil)
	if got := g.ClassifyIntent(context.Background(), "plot sales", ""); got != IntentGeneral {
		t.Fatalf("expected GENERAL on provider failure, got %s", got)
	}
}

func TestClassifyIntentIncludesConversationContext(t *testing.T) {
	p := &scriptedProvider{reply: "GENERAL"}
	g := New(p, nil)

	g.ClassifyIntent(context.Background(), "and now?", "user: hi\nassistant: hello")

	if len(p.last) != 1 {
		t.Fatalf("expected a single prompt message, got %d", len(p.last))
	}
	if !strings.Contains(p.last[0].Content, "Previous conversation context:\nuser: hi\nassistant: hello") {
		t.Fatalf("context missing from prompt:\n%s", p.last[0].Content)
	}
}

func TestPlotCodeStripsFences(t *testing.T) {
	p := &scriptedProvider{reply: "```python\nimport pandas as pd\nprint('PLOT_SAVED')\n```"}
	g := New(p, nil)

	code, err := g.PlotCode(context.Background(), "plot sales", "http://x/data.csv", "File: data.csv")
	if err != nil {
		t.Fatalf("plot code: %v", err)
	}
	if strings.Contains(code, "```") {
		t.Fatalf("fences not stripped: %q", code)
	}
	if !strings.HasPrefix(code, "import pandas") {
		t.Fatalf("unexpected code: %q", code)
	}
	if !strings.Contains(p.last[0].Content, "DATA FILE URL: http://x/data.csv") {
		t.Fatalf("data url missing from prompt:\n%s", p.last[0].Content)
	}
}

func TestCleaningCodePropagatesProviderError(t *testing.T) {
	g := New(&scriptedProvider{err: errors.New("boom")}, nil)
	if _, err := g.CleaningCode(context.Background(), "dedupe", "http://x/d.csv", ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestChatReplyUsesFallbackWhenPrimaryFails(t *testing.T) {
	primary := &scriptedProvider{err: errors.New("primary down")}
	fallback := &scriptedProvider{reply: "fallback answer"}
	g := New(primary, fallback)

	reply, err := g.ChatReply(context.Background(), "what is pandas?", nil)
	if err != nil {
		t.Fatalf("chat reply: %v", err)
	}
	if reply != "fallback answer" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("unexpected call counts: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestChatReplyErrorsWhenBothProvidersFail(t *testing.T) {
	g := New(&scriptedProvider{err: errors.New("a")}, &scriptedProvider{err: errors.New("b")})
	if _, err := g.ChatReply(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected an error when both providers fail")
	}
}

func TestChatReplySeedsPersonaAndHistory(t *testing.T) {
	p := &scriptedProvider{reply: "sure"}
	g := New(p, nil)

	history := []ai.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	if _, err := g.ChatReply(context.Background(), "next", history); err != nil {
		t.Fatalf("chat reply: %v", err)
	}

	if len(p.last) != 5 {
		t.Fatalf("expected persona pair + history + message, got %d messages", len(p.last))
	}
	if !strings.Contains(p.last[0].Content, "You are Datagent") {
		t.Fatalf("persona missing: %q", p.last[0].Content)
	}
	if p.last[4].Content != "next" {
		t.Fatalf("user message must come last, got %q", p.last[4].Content)
	}
}
