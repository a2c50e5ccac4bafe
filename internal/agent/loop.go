// Package agent implements AgentLoop: the think-act-observe cycle that
// turns one user message into zero-or-more tool calls and a final
// assistant reply, persisting the exchange to a Session and triggering
// summarisation when the history grows too large.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/providers"
	"github.com/tinyclaw-run/tinyclaw/internal/sessions"
)

const (
	defaultMaxToolIterations = 20
	defaultContextWindow     = 200000
)

// ToolExecutor is satisfied by tools.Registry.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (string, error)
	Definitions() []providers.ToolDefinition
}

// ContextBuilder is satisfied by context.Builder.
type ContextBuilder interface {
	BuildMessages(history []providers.Message, summary, userMessage, channel, chatID string) []providers.Message
}

// SessionStore is satisfied by sessions.Manager.
type SessionStore interface {
	History(key string) []sessions.Message
	GetSummary(key string) string
	SetSummary(key, summary string)
	Append(key string, msg sessions.Message)
	Truncate(key string, keepLast int)
	Save(key string) error
}

// Config configures a new Loop.
type Config struct {
	Provider      providers.Provider
	Model         string // overrides provider.DefaultModel() when set
	ContextWindow int    // default 200000
	MaxIterations int    // default 20

	Sessions SessionStore
	Tools    ToolExecutor
	Context  ContextBuilder
	Bus      bus.MessageRouter // optional: only needed by Run()

	Log *slog.Logger
}

// Loop is the agent execution loop for one process. It holds no
// per-turn mutable state beyond the swappable provider reference.
type Loop struct {
	mu       sync.RWMutex
	provider providers.Provider
	model    string

	contextWindow int
	maxIterations int

	sessions SessionStore
	tools    ToolExecutor
	context  ContextBuilder
	busRtr   bus.MessageRouter

	log    *slog.Logger
	tracer trace.Tracer
}

func NewLoop(cfg Config) *Loop {
	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxToolIterations
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		provider:      cfg.Provider,
		model:         cfg.Model,
		contextWindow: contextWindow,
		maxIterations: maxIterations,
		sessions:      cfg.Sessions,
		tools:         cfg.Tools,
		context:       cfg.Context,
		busRtr:        cfg.Bus,
		log:           log.With("component", "agent"),
		tracer:        otel.Tracer("tinyclaw/agent"),
	}
}

// SetProvider swaps the bound LLM client. The swap is atomic with
// respect to any in-flight turn: a turn that already captured the old
// provider finishes with it; the next turn sees the new one.
func (l *Loop) SetProvider(p providers.Provider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.provider = p
}

func (l *Loop) currentProvider() providers.Provider {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.provider
}

// ProcessDirect runs one turn synchronously and returns the final
// assistant text.
func (l *Loop) ProcessDirect(ctx context.Context, text, sessionKey string) (string, error) {
	return l.runTurn(ctx, sessionKey, "", "", text, nil, 0)
}

// ProcessDirectStream runs one turn, streaming content deltas to
// onChunk as they arrive, and returns the final assistant text.
func (l *Loop) ProcessDirectStream(ctx context.Context, text, sessionKey string, onChunk func(string)) (string, error) {
	return l.runTurn(ctx, sessionKey, "", "", text, onChunk, 0)
}

// ProcessDirectWithChannel runs one turn for a scheduler- or
// channel-originated message that carries a destination.
func (l *Loop) ProcessDirectWithChannel(ctx context.Context, text, sessionKey, channel, chatID string) (string, error) {
	return l.runTurn(ctx, sessionKey, channel, chatID, text, nil, 0)
}

// RunDirect implements scheduler.AgentRunner.
func (l *Loop) RunDirect(ctx context.Context, sessionKey, message string) (string, error) {
	return l.ProcessDirect(ctx, message, sessionKey)
}

// RunForChannel implements scheduler.AgentRunner.
func (l *Loop) RunForChannel(ctx context.Context, channel, chatID, message string) (string, error) {
	key := sessions.Key(channel, chatID)
	return l.ProcessDirectWithChannel(ctx, message, key, channel, chatID)
}

// RunSync implements tools.SubAgentRunner: each call gets a fresh
// session that is never reused, and may override the iteration cap.
func (l *Loop) RunSync(ctx context.Context, task string, maxIterations int) (string, error) {
	key := sessions.SubagentKey(newRunID())
	return l.runTurn(ctx, key, "", "", task, nil, maxIterations)
}

// Run consumes InboundMessage forever, one at a time — turns execute
// sequentially, one LLM conversation at a time per process — routing
// each through the loop and publishing the reply outbound. It returns
// when the bus stops yielding messages (context cancelled).
func (l *Loop) Run(ctx context.Context) error {
	if l.busRtr == nil {
		return fmt.Errorf("agent: Run requires a MessageRouter")
	}
	for {
		msg, ok := l.busRtr.ConsumeInbound(ctx)
		if !ok {
			return ctx.Err()
		}
		key := sessions.Key(msg.Channel, msg.ChatID)
		content, err := l.ProcessDirectWithChannel(ctx, msg.Content, key, msg.Channel, msg.ChatID)
		if err != nil {
			l.log.Warn("turn failed", "session", key, "error", err)
			continue
		}
		if content == "" {
			continue
		}
		l.busRtr.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: content,
		})
	}
}

// runTurn is the core think-act-observe cycle: build context, loop
// bounded by maxIterations calling the LLM and executing any requested
// tool calls in declared order, persist the whole exchange, then maybe
// trigger summarisation.
func (l *Loop) runTurn(ctx context.Context, sessionKey, channel, chatID, userMessage string, onChunk func(string), maxIterationsOverride int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, span := l.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("session.key", sessionKey),
	))
	defer span.End()

	provider := l.currentProvider()
	model := l.model
	if model == "" {
		model = provider.DefaultModel()
	}

	maxIterations := l.maxIterations
	if maxIterationsOverride > 0 {
		maxIterations = maxIterationsOverride
	}

	history := l.sessions.History(sessionKey)
	summary := l.sessions.GetSummary(sessionKey)
	messages := l.context.BuildMessages(history, summary, userMessage, channel, chatID)

	// Messages produced by this turn, persisted once the turn completes
	// so concurrent reads never observe a half-written turn.
	turnMessages := []providers.Message{{Role: "user", Content: userMessage}}

	var finalContent string
	reachedCap := false
	toolRounds := 0

	// maxIterations bounds the number of tool-execution rounds, not LLM
	// calls: once that many rounds have executed, one further LLM call
	// is still made against the extended message list (it may decide
	// it's done); only if that call also requests a tool do we stop
	// short and report the cap instead of executing it.
	for {
		req := providers.ChatRequest{
			Messages: messages,
			Tools:    l.tools.Definitions(),
			Model:    model,
		}

		llmCtx, llmSpan := l.tracer.Start(ctx, "agent.llm_call", trace.WithAttributes(
			attribute.Int("tool_round", toolRounds),
		))

		var resp *providers.ChatResponse
		var err error
		if onChunk != nil {
			resp, err = provider.ChatStream(llmCtx, req, func(chunk providers.StreamChunk) {
				if chunk.Content != "" {
					onChunk(chunk.Content)
				}
			})
		} else {
			resp, err = provider.Chat(llmCtx, req)
		}

		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			// LLM transport errors surface as a user-visible error string
			// for this turn only; they are appended to the session so the
			// next turn can see them, but never bubble out as a Go error.
			finalContent = fmt.Sprintf("I hit an error talking to the model: %v", err)
			break
		}
		llmSpan.End()

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		if toolRounds >= maxIterations {
			reachedCap = true
			break
		}
		toolRounds++

		assistantMsg := providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistantMsg)
		turnMessages = append(turnMessages, assistantMsg)

		// Tool calls within one assistant response execute in declared
		// order, never in parallel.
		for _, tc := range resp.ToolCalls {
			toolCtx, toolSpan := l.tracer.Start(ctx, "agent.tool_call", trace.WithAttributes(
				attribute.String("tool.name", tc.Name),
			))
			out, terr := l.tools.Execute(toolCtx, tc.Name, tc.Arguments)
			if terr != nil {
				toolSpan.RecordError(terr)
				toolSpan.SetStatus(codes.Error, terr.Error())
				out = terr.Error()
			}
			toolSpan.End()

			toolMsg := providers.Message{
				Role:       "tool",
				Content:    out,
				ToolCallID: tc.ID,
			}
			messages = append(messages, toolMsg)
			turnMessages = append(turnMessages, toolMsg)
		}
	}

	if reachedCap {
		finalContent = fmt.Sprintf(
			"I reached the maximum of %d tool iterations while working on this and I'm stopping here so I don't loop forever. Here's where things stand; feel free to ask me to continue.",
			maxIterations,
		)
	}

	finalContent = sanitizeAssistantContent(finalContent)
	turnMessages = append(turnMessages, providers.Message{Role: "assistant", Content: finalContent})

	for _, m := range turnMessages {
		l.sessions.Append(sessionKey, m)
	}
	if err := l.sessions.Save(sessionKey); err != nil {
		l.log.Warn("session persistence failed", "session", sessionKey, "error", err)
	}

	l.maybeSummarize(ctx, sessionKey)

	span.SetAttributes(attribute.Int("tool_rounds", toolRounds))
	return finalContent, nil
}
