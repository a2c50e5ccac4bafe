// Package gateway wires every subsystem into one running process: the
// GatewayOrchestrator composition root. It constructs components in
// dependency order, starts them, and on shutdown gives the agent loop's
// in-flight turn a bounded grace period before cancelling it, rather
// than abandoning it mid-call.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tinyclaw-run/tinyclaw/internal/agent"
	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/camera"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/dingtalk"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/discord"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/feishu"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/qq"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/telegram"
	"github.com/tinyclaw-run/tinyclaw/internal/channels/whatsapp"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
	ctxbuilder "github.com/tinyclaw-run/tinyclaw/internal/context"
	"github.com/tinyclaw-run/tinyclaw/internal/memory"
	"github.com/tinyclaw-run/tinyclaw/internal/providers"
	"github.com/tinyclaw-run/tinyclaw/internal/scheduler"
	"github.com/tinyclaw-run/tinyclaw/internal/security"
	"github.com/tinyclaw-run/tinyclaw/internal/sessions"
	"github.com/tinyclaw-run/tinyclaw/internal/skills"
	"github.com/tinyclaw-run/tinyclaw/internal/tools"
	"github.com/tinyclaw-run/tinyclaw/internal/webhook"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultShutdownGraceMs = 30000

// Gateway holds every long-lived component constructed by New, in
// dependency order: SecurityGuard, ToolRegistry, LLMClient,
// SessionStore, ContextBuilder, MessageBus, AgentLoop, ChannelManager,
// Scheduler, optional Heartbeat, optional WebhookReceiver.
type Gateway struct {
	cfg *config.Config

	guard    *security.Guard
	toolsReg *tools.Registry
	sessMgr  *sessions.Manager
	ctxBuild *ctxbuilder.Builder
	loop     *agent.Loop
	msgBus   *bus.MessageBus
	chanMgr  *channels.Manager
	sched    *scheduler.Scheduler
	heart    *memory.Heartbeat
	hook     *webhook.Server

	graceMs int
}

// New constructs every component, wiring each into the next exactly
// once (no partial construction on error: a failure here means the
// process should exit non-zero before starting anything).
func New(cfg *config.Config) (*Gateway, error) {
	workspace, err := resolveWorkspace(cfg.Agent.Workspace)
	if err != nil {
		return nil, fmt.Errorf("gateway: resolve workspace: %w", err)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("gateway: create workspace: %w", err)
	}

	guard, err := security.New(security.Policy{
		WorkspaceRoot:       workspace,
		RestrictToWorkspace: cfg.Agent.RestrictToWorkspace,
		CommandBlacklist:    cfg.Agent.CommandBlacklist,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: security guard: %w", err)
	}

	toolsReg := tools.NewRegistry(prometheus.DefaultRegisterer)

	provider, err := resolveProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: resolve provider: %w", err)
	}

	sessMgr, err := sessions.NewManager(cfg.Sessions.Storage)
	if err != nil {
		return nil, fmt.Errorf("gateway: session store: %w", err)
	}

	skillsIdx := skills.NewIndex(filepath.Join(workspace, "skills"))
	memStore := memory.New(workspace)
	ctxBuild := ctxbuilder.NewBuilder(workspace, toolsReg, skillsIdx, memStore)

	msgBus := bus.NewMessageBus(256)

	loop := agent.NewLoop(agent.Config{
		Provider:      provider,
		Model:         cfg.Agent.Model,
		ContextWindow: cfg.Agent.ContextWindow,
		MaxIterations: cfg.Agent.MaxToolIterations,
		Sessions:      sessMgr,
		Tools:         toolsReg,
		Context:       ctxBuild,
		Bus:           msgBus,
	})

	registerBuiltinTools(toolsReg, guard, loop, workspace, cfg)

	chanMgr := channels.NewManager(msgBus)
	registerChannels(chanMgr, cfg, msgBus)
	toolsReg.Register(tools.NewMessageTool(msgBus, chanMgr.GetEnabledChannels()))

	cronPath := cfg.Cron.Storage
	sched, err := scheduler.New(cronPath, loop, channelDeliverer{chanMgr})
	if err != nil {
		return nil, fmt.Errorf("gateway: scheduler: %w", err)
	}
	toolsReg.Register(tools.NewCronTool(sched))

	var heart *memory.Heartbeat
	if cfg.Heartbeat.Enabled {
		every, err := time.ParseDuration(cfg.Heartbeat.Every)
		if err != nil || every <= 0 {
			every = 30 * time.Minute
		}
		sessionKey := cfg.Heartbeat.Session
		if sessionKey == "" {
			sessionKey = "system:heartbeat"
		}
		notesFile := cfg.Heartbeat.NotesFile
		heart = memory.NewHeartbeat(every, func(ctx context.Context) error {
			notes := readNotesFile(workspace, notesFile)
			prompt := fmt.Sprintf("Heartbeat at %s.\n\n%s", time.Now().Format(time.RFC3339), notes)
			_, err := loop.ProcessDirect(ctx, prompt, sessionKey)
			return err
		})
	}

	var hook *webhook.Server
	if cfg.Gateway.Host != "" || cfg.Gateway.Port != 0 {
		addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
		hook = webhook.NewServer(addr)
		if f, ok := chanMgr.GetChannel("feishu"); ok {
			if h, ok := f.(webhook.Handler); ok {
				hook.Register("feishu", h)
			}
		}
		if d, ok := chanMgr.GetChannel("dingtalk"); ok {
			if h, ok := d.(webhook.Handler); ok {
				hook.Register("dingtalk", h)
			}
		}
		if q, ok := chanMgr.GetChannel("qq"); ok {
			if h, ok := q.(webhook.Handler); ok {
				hook.Register("qq", h)
			}
		}
	}

	graceMs := cfg.Gateway.ShutdownGraceMs
	if graceMs <= 0 {
		graceMs = defaultShutdownGraceMs
	}

	return &Gateway{
		cfg:      cfg,
		guard:    guard,
		toolsReg: toolsReg,
		sessMgr:  sessMgr,
		ctxBuild: ctxBuild,
		loop:     loop,
		msgBus:   msgBus,
		chanMgr:  chanMgr,
		sched:    sched,
		heart:    heart,
		hook:     hook,
		graceMs:  graceMs,
	}, nil
}

// Loop exposes the agent loop for the `agent` CLI subcommand.
func (g *Gateway) Loop() *agent.Loop { return g.loop }

// Scheduler exposes the scheduler for the `cron` CLI subcommand.
func (g *Gateway) Scheduler() *scheduler.Scheduler { return g.sched }

// Channels exposes the channel manager for the `status` CLI subcommand.
func (g *Gateway) Channels() *channels.Manager { return g.chanMgr }

// Run starts the scheduler, heartbeat, channels, webhook receiver and
// agent loop, and blocks until ctx is cancelled. It then waits up to
// the configured grace period for the agent loop before cancelling it,
// and stops the webhook receiver, channels, scheduler and heartbeat.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.sched.Start(runCtx)
	if g.heart != nil {
		g.heart.Start(runCtx)
	}
	if err := g.chanMgr.StartAll(runCtx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}
	if g.hook != nil {
		go func() {
			if err := g.hook.Start(runCtx); err != nil {
				slog.Error("webhook receiver stopped", "error", err)
			}
		}()
	}

	// The agent loop runs on its own context, independent of runCtx, so
	// that shutdown doesn't instantly cancel an in-flight LLM call out
	// from under it. Shutdown cancels loopCtx only after the grace
	// period below expires.
	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- g.loop.Run(loopCtx) }()

	slog.Info("tinyclaw gateway running",
		"channels", g.chanMgr.GetEnabledChannels(),
		"tools", len(g.toolsReg.Definitions()),
	)

	<-ctx.Done()
	slog.Info("gateway shutting down")

	cancel()

	graceTimer := time.NewTimer(time.Duration(g.graceMs) * time.Millisecond)
	select {
	case <-loopDone:
		graceTimer.Stop()
	case <-graceTimer.C:
		slog.Warn("agent loop did not finish within shutdown grace period; cancelling in-flight turn")
		loopCancel()
		<-loopDone
	}

	if g.hook != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = g.hook.Stop(shutdownCtx)
		shutdownCancel()
	}
	_ = g.chanMgr.StopAll(context.Background())
	g.sched.Stop()
	if g.heart != nil {
		g.heart.Stop()
	}
	return nil
}

func resolveWorkspace(ws string) (string, error) {
	if ws == "" {
		ws = "."
	}
	if ws[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		ws = filepath.Join(home, ws[1:])
	}
	return filepath.Abs(ws)
}

func readNotesFile(workspace, name string) string {
	if name == "" {
		name = "memory/HEARTBEAT.md"
	}
	data, err := os.ReadFile(filepath.Join(workspace, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// resolveProvider picks the configured backend by cfg.Agent.Provider
// and constructs an OpenAIProvider bound to its credentials — every
// supported backend speaks the OpenAI-compatible chat-completions wire
// format.
func resolveProvider(cfg *config.Config) (providers.Provider, error) {
	name := cfg.Agent.Provider
	if name == "" {
		name = "openai"
	}

	var pc config.ProviderConfig
	var defaultBase string
	switch name {
	case "openai":
		pc, defaultBase = cfg.Providers.OpenAI, "https://api.openai.com/v1"
	case "anthropic":
		pc, defaultBase = cfg.Providers.Anthropic, "https://api.anthropic.com/v1"
	case "openrouter":
		pc, defaultBase = cfg.Providers.OpenRouter, "https://openrouter.ai/api/v1"
	case "deepseek":
		pc, defaultBase = cfg.Providers.DeepSeek, "https://api.deepseek.com/v1"
	case "groq":
		pc, defaultBase = cfg.Providers.Groq, "https://api.groq.com/openai/v1"
	case "gemini":
		pc, defaultBase = cfg.Providers.Gemini, "https://generativelanguage.googleapis.com/v1beta/openai"
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("provider %q has no api_key configured", name)
	}

	apiBase := pc.APIBase
	if apiBase == "" {
		apiBase = defaultBase
	}
	return providers.NewOpenAIProvider(name, pc.APIKey, apiBase, cfg.Agent.Model), nil
}

func registerBuiltinTools(reg *tools.Registry, guard *security.Guard, loop *agent.Loop, workspace string, cfg *config.Config) {
	execTimeout := time.Duration(cfg.Tools.ExecPolicy.TimeoutMs) * time.Millisecond
	reg.Register(tools.NewReadFileTool(workspace, guard))
	reg.Register(tools.NewWriteFileTool(workspace, guard))
	reg.Register(tools.NewAppendFileTool(workspace, guard))
	reg.Register(tools.NewEditFileTool(workspace, guard))
	reg.Register(tools.NewListDirTool(workspace, guard))
	reg.Register(tools.NewExecToolWithTimeout(guard, execTimeout))
	reg.Register(tools.NewSpawnTool(loop))
	reg.Register(tools.NewWebSearchTool())
	reg.Register(tools.NewWebFetchTool())
}

// registerChannels constructs every enabled channel. A single channel
// failing to construct is logged and skipped, not fatal — the rest
// still start.
func registerChannels(mgr *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) {
	if cfg.Channels.Telegram.Enabled {
		ch, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "telegram", "error", err)
		} else {
			mgr.RegisterChannel("telegram", ch)
		}
	}
	if cfg.Channels.Discord.Enabled {
		ch, err := discord.New(cfg.Channels.Discord, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "discord", "error", err)
		} else {
			mgr.RegisterChannel("discord", ch)
		}
	}
	if cfg.Channels.WhatsApp.Enabled {
		ch, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "whatsapp", "error", err)
		} else {
			mgr.RegisterChannel("whatsapp", ch)
		}
	}
	if cfg.Channels.Feishu.Enabled {
		ch, err := feishu.New(cfg.Channels.Feishu, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "feishu", "error", err)
		} else {
			mgr.RegisterChannel("feishu", ch)
		}
	}
	if cfg.Channels.DingTalk.Enabled {
		ch, err := dingtalk.New(cfg.Channels.DingTalk, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "dingtalk", "error", err)
		} else {
			mgr.RegisterChannel("dingtalk", ch)
		}
	}
	if cfg.Channels.QQ.Enabled {
		ch, err := qq.New(cfg.Channels.QQ, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "qq", "error", err)
		} else {
			mgr.RegisterChannel("qq", ch)
		}
	}
	if cfg.Channels.Camera.Enabled {
		ch, err := camera.New(cfg.Channels.Camera, msgBus)
		if err != nil {
			slog.Error("failed to construct channel", "channel", "camera", "error", err)
		} else {
			mgr.RegisterChannel("camera", ch)
		}
	}
}

// channelDeliverer adapts channels.Manager to scheduler.Deliverer.
type channelDeliverer struct {
	mgr *channels.Manager
}

func (d channelDeliverer) Deliver(channel, chatID, content string) error {
	return d.mgr.SendToChannel(context.Background(), channel, chatID, content)
}
