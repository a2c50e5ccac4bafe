package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	agentcontext "github.com/tinyclaw-run/tinyclaw/internal/context"
	"github.com/tinyclaw-run/tinyclaw/internal/providers"
	"github.com/tinyclaw-run/tinyclaw/internal/sessions"
)

// stubProvider returns canned responses in sequence; the last response
// repeats once exhausted.
type stubProvider struct {
	responses []providers.ChatResponse
	calls     int32
	model     string
}

func (p *stubProvider) next() providers.ChatResponse {
	i := int(atomic.AddInt32(&p.calls, 1)) - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i]
}

func (p *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	resp := p.next()
	return &resp, nil
}

func (p *stubProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	resp := p.next()
	if resp.Content != "" {
		onChunk(providers.StreamChunk{Content: resp.Content})
	}
	return &resp, nil
}

func (p *stubProvider) DefaultModel() string { return p.model }
func (p *stubProvider) Name() string         { return "stub" }

// erroringProvider always fails Chat/ChatStream.
type erroringProvider struct{ err error }

func (p *erroringProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return nil, p.err
}
func (p *erroringProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return nil, p.err
}
func (p *erroringProvider) DefaultModel() string { return "stub" }
func (p *erroringProvider) Name() string         { return "erroring" }

// fakeTools records calls and returns a canned string per tool name.
type fakeTools struct {
	calls   []string
	returns map[string]string
	errs    map[string]error
}

func (f *fakeTools) Execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	f.calls = append(f.calls, name)
	if err, ok := f.errs[name]; ok {
		return "", err
	}
	return f.returns[name], nil
}

func (f *fakeTools) Definitions() []providers.ToolDefinition { return nil }

func newTestLoop(t *testing.T, provider providers.Provider, tools ToolExecutor) (*Loop, *sessions.Manager) {
	t.Helper()
	sm, err := sessions.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	builder := agentcontext.NewBuilder(t.TempDir(), nil, nil, nil)
	loop := NewLoop(Config{
		Provider: provider,
		Sessions: sm,
		Tools:    tools,
		Context:  builder,
	})
	return loop, sm
}

func TestProcessDirectPureChatNoTools(t *testing.T) {
	provider := &stubProvider{responses: []providers.ChatResponse{
		{Content: "Hello"},
	}}
	loop, sm := newTestLoop(t, provider, &fakeTools{returns: map[string]string{}})

	got, err := loop.ProcessDirect(context.Background(), "Hi", "test:1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello" {
		t.Fatalf("got %q, want Hello", got)
	}
	if atomic.LoadInt32(&provider.calls) != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", provider.calls)
	}

	history := sm.History("test:1")
	if len(history) != 2 || history[0].Role != "user" || history[0].Content != "Hi" ||
		history[1].Role != "assistant" || history[1].Content != "Hello" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestProcessDirectOneToolCallThenAnswer(t *testing.T) {
	provider := &stubProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "c1", Name: "read_file", Arguments: map[string]interface{}{"path": "notes.txt"}}}},
		{Content: "Here: contents-of-notes"},
	}}
	tools := &fakeTools{returns: map[string]string{"read_file": "contents-of-notes"}}
	loop, sm := newTestLoop(t, provider, tools)

	got, err := loop.ProcessDirect(context.Background(), "What's in notes.txt?", "test:2")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Here: contents-of-notes" {
		t.Fatalf("got %q", got)
	}
	if atomic.LoadInt32(&provider.calls) != 2 {
		t.Fatalf("expected exactly two LLM calls, got %d", provider.calls)
	}

	history := sm.History("test:2")
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(history), history)
	}
	if history[0].Role != "user" {
		t.Fatalf("message 0 should be user, got %s", history[0].Role)
	}
	if history[1].Role != "assistant" || len(history[1].ToolCalls) != 1 {
		t.Fatalf("message 1 should be assistant with tool_calls, got %+v", history[1])
	}
	if history[2].Role != "tool" || history[2].ToolCallID != "c1" || history[2].Content != "contents-of-notes" {
		t.Fatalf("message 2 should be tool result for c1, got %+v", history[2])
	}
	if history[3].Role != "assistant" || history[3].Content != "Here: contents-of-notes" {
		t.Fatalf("message 3 should be final assistant message, got %+v", history[3])
	}
}

func TestProcessDirectToolErrorNeverAbortsLoop(t *testing.T) {
	provider := &stubProvider{responses: []providers.ChatResponse{
		{ToolCalls: []providers.ToolCall{{ID: "c1", Name: "read_file", Arguments: map[string]interface{}{"path": "/etc/passwd"}}}},
		{Content: "done"},
	}}
	tools := &fakeTools{errs: map[string]error{"read_file": fmt.Errorf("Access denied: path outside workspace")}}
	loop, _ := newTestLoop(t, provider, tools)

	got, err := loop.ProcessDirect(context.Background(), "read /etc/passwd", "test:3")
	if err != nil {
		t.Fatal(err)
	}
	if got != "done" {
		t.Fatalf("got %q, want done", got)
	}
}

func TestProcessDirectIterationCap(t *testing.T) {
	// LLM always returns a tool call; cap is 3 tool-execution rounds.
	resp := providers.ChatResponse{ToolCalls: []providers.ToolCall{{ID: "c", Name: "loop_tool", Arguments: nil}}}
	provider := &stubProvider{responses: []providers.ChatResponse{resp}}
	tools := &fakeTools{returns: map[string]string{"loop_tool": "ok"}}

	sm, err := sessions.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	builder := agentcontext.NewBuilder(t.TempDir(), nil, nil, nil)
	loop := NewLoop(Config{
		Provider:      provider,
		Sessions:      sm,
		Tools:         tools,
		Context:       builder,
		MaxIterations: 3,
	})

	got, err := loop.ProcessDirect(context.Background(), "go", "test:4")
	if err != nil {
		t.Fatal(err)
	}
	if len(tools.calls) != 3 {
		t.Fatalf("expected exactly 3 tool executions, got %d", len(tools.calls))
	}
	if atomic.LoadInt32(&provider.calls) != 4 {
		t.Fatalf("expected exactly 4 LLM calls (3 rounds + 1 cap check), got %d", provider.calls)
	}
	if got == "" {
		t.Fatal("expected a synthetic cap-notice message")
	}
}

func TestProcessDirectLLMErrorSurfacesAsTurnLocalString(t *testing.T) {
	loop, sm := newTestLoop(t, &erroringProvider{err: fmt.Errorf("connection refused")}, &fakeTools{})

	got, err := loop.ProcessDirect(context.Background(), "hi", "test:5")
	if err != nil {
		t.Fatalf("LLM errors must not bubble out as a Go error, got %v", err)
	}
	if got == "" {
		t.Fatal("expected a non-empty user-visible error string")
	}

	history := sm.History("test:5")
	if len(history) != 2 || history[1].Content != got {
		t.Fatalf("error message must be persisted to the session: %+v", history)
	}
}

func TestRunSyncUsesDedicatedSessionPerCall(t *testing.T) {
	provider := &stubProvider{responses: []providers.ChatResponse{{Content: "sub-agent result"}}}
	loop, sm := newTestLoop(t, provider, &fakeTools{})

	got, err := loop.RunSync(context.Background(), "do a thing", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != "sub-agent result" {
		t.Fatalf("got %q", got)
	}
	if _, err := loop.RunSync(context.Background(), "do another thing", 5); err != nil {
		t.Fatal(err)
	}
	keys := sm.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected one session per RunSync call, got keys %v", keys)
	}
	for _, k := range keys {
		if ch, _, _ := sessions.Split(k); ch != "subagent" {
			t.Fatalf("expected a subagent session key, got %q", k)
		}
	}
}

func TestRunForChannelDerivesSessionKeyFromChannelAndChatID(t *testing.T) {
	provider := &stubProvider{responses: []providers.ChatResponse{{Content: "ok"}}}
	loop, sm := newTestLoop(t, provider, &fakeTools{})

	_, err := loop.RunForChannel(context.Background(), "telegram", "42", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if history := sm.History("telegram:42"); len(history) != 2 {
		t.Fatalf("expected history under session key telegram:42, got %+v", history)
	}
}

func TestSetProviderSwapsForNextTurn(t *testing.T) {
	first := &stubProvider{responses: []providers.ChatResponse{{Content: "from first"}}}
	second := &stubProvider{responses: []providers.ChatResponse{{Content: "from second"}}}
	loop, _ := newTestLoop(t, first, &fakeTools{})

	got1, _ := loop.ProcessDirect(context.Background(), "a", "s1")
	loop.SetProvider(second)
	got2, _ := loop.ProcessDirect(context.Background(), "b", "s2")

	if got1 != "from first" || got2 != "from second" {
		t.Fatalf("got %q then %q", got1, got2)
	}
}
