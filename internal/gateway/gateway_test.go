package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinyclaw-run/tinyclaw/internal/agent"
	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
	ctxbuilder "github.com/tinyclaw-run/tinyclaw/internal/context"
	"github.com/tinyclaw-run/tinyclaw/internal/memory"
	"github.com/tinyclaw-run/tinyclaw/internal/providers"
	"github.com/tinyclaw-run/tinyclaw/internal/scheduler"
	"github.com/tinyclaw-run/tinyclaw/internal/sessions"
	"github.com/tinyclaw-run/tinyclaw/internal/skills"
	"github.com/tinyclaw-run/tinyclaw/internal/tools"
)

// slowProvider simulates an in-flight LLM call: Chat either finishes
// after delay (and reports whether ctx was cancelled first) or, with
// delay <= 0, blocks until ctx is cancelled.
type slowProvider struct {
	delay time.Duration
}

func (p *slowProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
			return &providers.ChatResponse{Content: "done", FinishReason: "stop"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *slowProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *slowProvider) DefaultModel() string { return "fake" }
func (p *slowProvider) Name() string         { return "fake" }

// newTestGateway builds a minimal Gateway whose agent loop runs against
// provider, bypassing New/resolveProvider so the test can control how
// long a "turn" takes.
func newTestGateway(t *testing.T, provider providers.Provider, graceMs int) *Gateway {
	t.Helper()
	dir := t.TempDir()

	sessMgr, err := sessions.NewManager(filepath.Join(dir, "sessions"))
	if err != nil {
		t.Fatalf("sessions.NewManager: %v", err)
	}
	toolsReg := tools.NewRegistry(prometheus.NewRegistry())
	skillsIdx := skills.NewIndex(filepath.Join(dir, "skills"))
	memStore := memory.New(dir)
	ctxBuild := ctxbuilder.NewBuilder(dir, toolsReg, skillsIdx, memStore)
	msgBus := bus.NewMessageBus(8)

	loop := agent.NewLoop(agent.Config{
		Provider: provider,
		Sessions: sessMgr,
		Tools:    toolsReg,
		Context:  ctxBuild,
		Bus:      msgBus,
	})

	chanMgr := channels.NewManager(msgBus)
	sched, err := scheduler.New(filepath.Join(dir, "cron.json"), loop, channelDeliverer{chanMgr})
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	return &Gateway{
		toolsReg: toolsReg,
		loop:     loop,
		msgBus:   msgBus,
		chanMgr:  chanMgr,
		sched:    sched,
		graceMs:  graceMs,
	}
}

// TestRunDrainsInFlightTurnWithinGracePeriod verifies that shutdown
// gives an in-flight LLM call time to finish rather than cancelling it
// the instant the outer context is done.
func TestRunDrainsInFlightTurnWithinGracePeriod(t *testing.T) {
	gw := newTestGateway(t, &slowProvider{delay: 80 * time.Millisecond}, 2000)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- gw.Run(ctx) }()

	gw.msgBus.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c1", Content: "hi"})
	time.Sleep(20 * time.Millisecond) // let the loop pick up the message and enter Chat
	cancel()

	replyCh := make(chan bus.OutboundMessage, 1)
	go func() {
		if msg, ok := gw.msgBus.SubscribeOutbound(context.Background()); ok {
			replyCh <- msg
		}
	}()

	select {
	case <-runDone:
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not return")
	}

	select {
	case msg := <-replyCh:
		if msg.Content != "done" {
			t.Fatalf("expected the in-flight turn to finish normally, got %q", msg.Content)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("in-flight turn never completed; shutdown cancelled it too early")
	}
}

// TestRunForceCancelsAfterGracePeriod verifies a turn that outlives the
// grace period is force-cancelled rather than hanging shutdown forever.
func TestRunForceCancelsAfterGracePeriod(t *testing.T) {
	gw := newTestGateway(t, &slowProvider{delay: 0}, 40)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- gw.Run(ctx) }()

	gw.msgBus.PublishInbound(bus.InboundMessage{Channel: "test", ChatID: "c1", Content: "hi"})
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not return after grace period expired; in-flight turn was never force-cancelled")
	}
}

func TestResolveProviderRequiresAPIKey(t *testing.T) {
	cfg := &config.Config{Agent: config.AgentConfig{Provider: "openai"}}
	if _, err := resolveProvider(cfg); err == nil {
		t.Fatal("expected error when no api_key is configured")
	}
}

func TestResolveProviderUnknownName(t *testing.T) {
	cfg := &config.Config{Agent: config.AgentConfig{Provider: "notreal"}}
	if _, err := resolveProvider(cfg); err == nil {
		t.Fatal("expected error for unknown provider name")
	}
}

func TestResolveProviderDefaultsToOpenAI(t *testing.T) {
	cfg := &config.Config{
		Agent:     config.AgentConfig{},
		Providers: config.ProvidersConfig{OpenAI: config.ProviderConfig{APIKey: "sk-test"}},
	}
	p, err := resolveProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("expected a provider")
	}
}

func TestResolveWorkspaceExpandsRelative(t *testing.T) {
	ws, err := resolveWorkspace("workspace")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(ws) {
		t.Fatalf("expected absolute path, got %q", ws)
	}
}
