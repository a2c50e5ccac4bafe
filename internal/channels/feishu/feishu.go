// Package feishu adapts Feishu/Lark's bot platform to a
// channels.Channel using a native net/http client (see larkclient.go)
// rather than the official SDK: inbound events arrive as webhook
// callbacks that internal/webhook routes to ProcessWebhookEvent,
// outbound replies render as either chunked rich text or a markdown
// card depending on content.
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

const (
	defaultTextChunkLimit = 4000
	senderCacheTTL         = 10 * time.Minute
	dedupTTL               = 5 * time.Minute
)

// Channel connects to Feishu/Lark via LarkClient, a native HTTP client.
type Channel struct {
	*channels.BaseChannel
	cfg            config.FeishuConfig
	client         *LarkClient
	botOpenID      string
	requireMention bool
	senderCache    sync.Map // open_id → *senderCacheEntry
	dedup          sync.Map // message_id → struct{}
}

type senderCacheEntry struct {
	name      string
	expiresAt time.Time
}

var _ channels.Channel = (*Channel)(nil)

// New creates a Feishu/Lark channel from config.
func New(cfg config.FeishuConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("feishu app_id and app_secret are required")
	}

	requireMention := true
	if cfg.RequireMention != nil {
		requireMention = *cfg.RequireMention
	}

	domain := resolveDomain(cfg.Domain)
	return &Channel{
		BaseChannel:    channels.NewBaseChannel("feishu", msgBus, cfg.AllowFrom),
		cfg:            cfg,
		client:         NewLarkClient(cfg.AppID, cfg.AppSecret, domain),
		requireMention: requireMention,
	}, nil
}

// Start probes the bot's own identity (needed for mention detection)
// and, for websocket mode, returns an error.
//
// TODO: websocket connection mode needs Feishu's long-connection
// frame protocol, which isn't implemented here — "webhook" is the
// supported and default connection mode; internal/webhook dispatches
// inbound events to ProcessWebhookEvent, so Start does no network
// listening of its own in that mode.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting feishu bot")

	if err := c.probeBotInfo(ctx); err != nil {
		slog.Warn("feishu bot identity probe failed (will continue)", "error", err)
	} else {
		slog.Info("feishu bot connected", "bot_open_id", c.botOpenID)
	}

	mode := c.cfg.ConnectionMode
	if mode == "" {
		mode = "webhook"
	}
	if mode == "websocket" {
		return fmt.Errorf("feishu connection_mode %q is not implemented; use \"webhook\"", mode)
	}

	c.SetRunning(true)
	return nil
}

// Stop marks the channel as no longer running. There is no listening
// socket to close in webhook mode — internal/webhook owns the HTTP
// server's lifecycle.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping feishu bot")
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to a Feishu chat, rendering as a
// markdown card when the content looks like it needs one (code blocks,
// tables), chunked rich text otherwise.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("feishu bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat id for feishu send")
	}
	if msg.Content == "" {
		return nil
	}

	renderMode := c.cfg.RenderMode
	if renderMode == "" {
		renderMode = "auto"
	}
	useCard := renderMode == "card" || (renderMode == "auto" && shouldUseCard(msg.Content))

	receiveIDType := resolveReceiveIDType(msg.ChatID)
	if useCard {
		return c.sendMarkdownCard(ctx, msg.ChatID, receiveIDType, msg.Content)
	}
	return c.sendChunkedText(ctx, msg.ChatID, receiveIDType, msg.Content)
}

// ProcessWebhookEvent handles one HTTP POST body delivered by
// internal/webhook's /webhook/feishu endpoint. It answers Feishu's
// URL-verification handshake (echoing the challenge value back as a
// JSON response body) and otherwise dispatches message events onto
// the bus, responding with an empty body (internal/webhook answers
// 200 OK for that case).
func (c *Channel) ProcessWebhookEvent(ctx context.Context, payload []byte) ([]byte, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("parse feishu webhook payload: %w", err)
	}

	if probe.Type == "url_verification" {
		var challenge webhookChallenge
		if err := json.Unmarshal(payload, &challenge); err != nil {
			return nil, fmt.Errorf("parse feishu url_verification payload: %w", err)
		}
		resp, _ := json.Marshal(map[string]string{"challenge": challenge.Challenge})
		return resp, nil
	}

	var event MessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse feishu message event: %w", err)
	}
	if event.Header.EventType != "im.message.receive_v1" {
		return nil, nil
	}

	c.handleMessageEvent(ctx, &event)
	return nil, nil
}

func (c *Channel) probeBotInfo(ctx context.Context) error {
	openID, err := c.client.GetBotInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch bot info: %w", err)
	}
	if openID == "" {
		return fmt.Errorf("bot open_id is empty")
	}
	c.botOpenID = openID
	return nil
}

// handleMessageEvent parses, dedups, policy-checks, and publishes an
// inbound message event onto the bus.
func (c *Channel) handleMessageEvent(ctx context.Context, event *MessageEvent) {
	messageID := event.Event.Message.MessageID
	if messageID == "" {
		return
	}
	if c.isDuplicate(messageID) {
		slog.Debug("feishu message deduplicated", "message_id", messageID)
		return
	}

	mc := c.parseMessageEvent(event)

	isGroup := mc.ChatType == "group"
	peerKind := "direct"
	if isGroup {
		peerKind = "group"
	}

	if !c.CheckPolicy(peerKind, c.cfg.DMPolicy, c.cfg.GroupPolicy, mc.SenderID) {
		slog.Debug("feishu message rejected by policy", "sender_id", mc.SenderID, "peer_kind", peerKind)
		return
	}
	if !c.IsAllowed(mc.SenderID) {
		slog.Debug("feishu message rejected by allowlist", "sender_id", mc.SenderID)
		return
	}
	if isGroup && c.requireMention && !mc.MentionedBot {
		slog.Debug("feishu group message skipped (no mention)", "chat_id", mc.ChatID)
		return
	}

	content := mc.Content
	if content == "" {
		content = "[empty message]"
	}

	senderName := c.resolveSenderName(ctx, mc.SenderID)
	if isGroup && senderName != "" {
		content = fmt.Sprintf("[From: %s]\n%s", senderName, content)
	}

	slog.Debug("feishu message received",
		"sender_id", mc.SenderID, "chat_id", mc.ChatID, "chat_type", mc.ChatType,
		"preview", channels.Truncate(content, 50))

	metadata := map[string]string{
		"message_id":  mc.MessageID,
		"chat_type":   mc.ChatType,
		"sender_name": senderName,
	}

	c.HandleMessage(mc.SenderID, mc.ChatID, content, nil, metadata, peerKind)
}

func (c *Channel) resolveSenderName(ctx context.Context, openID string) string {
	if openID == "" {
		return ""
	}
	if entry, ok := c.senderCache.Load(openID); ok {
		e := entry.(*senderCacheEntry)
		if time.Now().Before(e.expiresAt) {
			return e.name
		}
		c.senderCache.Delete(openID)
	}

	name, err := c.client.GetUser(ctx, openID, "open_id")
	if err != nil {
		slog.Debug("feishu fetch sender name failed", "open_id", openID, "error", err)
		return ""
	}
	if name != "" {
		c.senderCache.Store(openID, &senderCacheEntry{name: name, expiresAt: time.Now().Add(senderCacheTTL)})
	}
	return name
}

// isDuplicate reports whether messageID has already been processed in
// the last dedupTTL window.
func (c *Channel) isDuplicate(messageID string) bool {
	_, loaded := c.dedup.LoadOrStore(messageID, struct{}{})
	if !loaded {
		go func() {
			time.Sleep(dedupTTL)
			c.dedup.Delete(messageID)
		}()
	}
	return loaded
}

func (c *Channel) sendChunkedText(ctx context.Context, chatID, receiveIDType, text string) error {
	limit := defaultTextChunkLimit
	for len(text) > 0 {
		chunk := text
		if len(chunk) > limit {
			cutAt := limit
			if idx := strings.LastIndex(text[:limit], "\n"); idx > limit/2 {
				cutAt = idx + 1
			}
			chunk, text = text[:cutAt], text[cutAt:]
		} else {
			text = ""
		}

		content := buildPostContent(chunk)
		if _, err := c.client.SendMessage(ctx, receiveIDType, chatID, "post", content); err != nil {
			return fmt.Errorf("feishu send text: %w", err)
		}
	}
	return nil
}

func (c *Channel) sendMarkdownCard(ctx context.Context, chatID, receiveIDType, text string) error {
	card := buildMarkdownCard(text)
	cardJSON, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal feishu card: %w", err)
	}
	if _, err := c.client.SendMessage(ctx, receiveIDType, chatID, "interactive", string(cardJSON)); err != nil {
		return fmt.Errorf("feishu send card: %w", err)
	}
	return nil
}

// resolveDomain maps a short config name to the Feishu/Lark API host;
// domestic Feishu and global Lark use separate hosts.
func resolveDomain(domain string) string {
	switch domain {
	case "feishu":
		return "https://open.feishu.cn"
	case "", "lark":
		return "https://open.larksuite.com"
	default:
		if !strings.HasPrefix(domain, "http") {
			return "https://" + domain
		}
		return domain
	}
}

// resolveReceiveIDType maps a chat/user ID's prefix to the
// receive_id_type the IM API expects.
func resolveReceiveIDType(id string) string {
	switch {
	case strings.HasPrefix(id, "ou_"):
		return "open_id"
	case strings.HasPrefix(id, "on_"):
		return "union_id"
	default:
		return "chat_id"
	}
}

func buildPostContent(text string) string {
	content := map[string]interface{}{
		"en_us": map[string]interface{}{
			"content": [][]map[string]interface{}{
				{{"tag": "md", "text": text}},
			},
		},
	}
	data, _ := json.Marshal(content)
	return string(data)
}

func buildMarkdownCard(text string) map[string]interface{} {
	return map[string]interface{}{
		"schema": "2.0",
		"config": map[string]interface{}{"wide_screen_mode": true},
		"body": map[string]interface{}{
			"elements": []map[string]interface{}{
				{"tag": "markdown", "content": text},
			},
		},
	}
}

// shouldUseCard reports whether content looks like it benefits from
// card rendering (code blocks, tables) rather than plain rich text.
func shouldUseCard(text string) bool {
	return strings.Contains(text, "```") || strings.Contains(text, "|---|") || strings.Contains(text, "| --- ")
}
