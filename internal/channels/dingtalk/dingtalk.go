// Package dingtalk adapts DingTalk's group-bot callback API to a
// channels.Channel. There is no SDK client here: inbound messages
// arrive as an "outgoing robot" webhook callback routed in by
// internal/webhook, and outbound replies post back to the
// per-conversation session webhook DingTalk hands back on that same
// callback (or, once it expires, to a persistent HMAC-signed "custom
// robot" webhook configured out of band).
package dingtalk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

// inboundEvent is DingTalk's outgoing-robot callback payload.
type inboundEvent struct {
	MsgID             string `json:"msgId"`
	ConversationID    string `json:"conversationId"`
	ConversationType  string `json:"conversationType"` // "1" direct, "2" group
	SenderID          string `json:"senderId"`
	SenderNick        string `json:"senderNick"`
	SessionWebhook     string `json:"sessionWebhook"`
	SessionWebhookExpiredTime int64 `json:"sessionWebhookExpiredTime"`
	IsInAtList        bool   `json:"isInAtList"`
	Text              struct {
		Content string `json:"content"`
	} `json:"text"`
}

type sessionWebhookEntry struct {
	url       string
	expiresAt time.Time
}

// Channel connects to DingTalk via group-bot webhook callbacks.
type Channel struct {
	*channels.BaseChannel
	cfg            config.DingTalkConfig
	httpClient     *http.Client
	requireMention bool
	sessions       sync.Map // conversationId → *sessionWebhookEntry
}

var _ channels.Channel = (*Channel)(nil)

// New creates a DingTalk channel from config.
func New(cfg config.DingTalkConfig, msgBus *bus.MessageBus) (*Channel, error) {
	return &Channel{
		BaseChannel:    channels.NewBaseChannel("dingtalk", msgBus, cfg.AllowFrom),
		cfg:            cfg,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		requireMention: true,
	}, nil
}

// Start marks the channel running; inbound delivery is owned by
// internal/webhook, so there's no connection of our own to open.
//
// TODO: DingTalk's stream-mode WebSocket client (ClientID/
// ClientSecret) would let a bot run without a public webhook
// endpoint, but needs DingTalk's stream frame protocol, which isn't
// implemented here — the webhook callback path above is what's wired.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting dingtalk bot (webhook mode)")
	c.SetRunning(true)
	return nil
}

// Stop marks the channel as no longer running.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping dingtalk bot")
	c.SetRunning(false)
	return nil
}

// Send posts a reply to the conversation's cached session webhook, or
// to the configured persistent custom-robot webhook if no session
// webhook is cached or it has expired.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("dingtalk bot not running")
	}
	if msg.Content == "" {
		return nil
	}

	webhookURL, err := c.resolveWebhook(msg.ChatID)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]interface{}{
		"msgtype": "text",
		"text":    map[string]string{"content": msg.Content},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dingtalk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send dingtalk message: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("dingtalk send error: code=%d msg=%s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

func (c *Channel) resolveWebhook(chatID string) (string, error) {
	if entry, ok := c.sessions.Load(chatID); ok {
		e := entry.(*sessionWebhookEntry)
		if time.Now().Before(e.expiresAt) {
			return e.url, nil
		}
		c.sessions.Delete(chatID)
	}

	if c.cfg.WebhookURL == "" {
		return "", fmt.Errorf("no session webhook cached for %q and no fallback webhook_url configured", chatID)
	}
	return signedWebhookURL(c.cfg.WebhookURL, c.cfg.Secret)
}

// signedWebhookURL appends DingTalk's timestamp+HMAC-SHA256 signature
// query parameters to a custom-robot webhook URL.
func signedWebhookURL(webhookURL, secret string) (string, error) {
	if secret == "" {
		return webhookURL, nil
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	toSign := timestamp + "\n" + secret
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(toSign))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", fmt.Errorf("parse dingtalk webhook url: %w", err)
	}
	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ProcessWebhookEvent handles one HTTP POST body delivered by
// internal/webhook's /webhook/dingtalk endpoint.
func (c *Channel) ProcessWebhookEvent(_ context.Context, payload []byte) ([]byte, error) {
	var event inboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse dingtalk webhook payload: %w", err)
	}
	c.handleInbound(&event)
	return nil, nil
}

func (c *Channel) handleInbound(event *inboundEvent) {
	if event.MsgID == "" {
		return
	}

	isGroup := event.ConversationType == "2"
	peerKind := "direct"
	if isGroup {
		peerKind = "group"
	}

	if !c.CheckPolicy(peerKind, c.cfg.DMPolicy, c.cfg.GroupPolicy, event.SenderID) {
		slog.Debug("dingtalk message rejected by policy", "sender_id", event.SenderID, "peer_kind", peerKind)
		return
	}
	if !c.IsAllowed(event.SenderID) {
		slog.Debug("dingtalk message rejected by allowlist", "sender_id", event.SenderID)
		return
	}
	if isGroup && c.requireMention && !event.IsInAtList {
		slog.Debug("dingtalk group message skipped (bot not mentioned)", "conversation_id", event.ConversationID)
		return
	}

	if event.SessionWebhook != "" {
		expiresAt := time.Now().Add(time.Hour)
		if event.SessionWebhookExpiredTime > 0 {
			expiresAt = time.UnixMilli(event.SessionWebhookExpiredTime)
		}
		c.sessions.Store(event.ConversationID, &sessionWebhookEntry{url: event.SessionWebhook, expiresAt: expiresAt})
	}

	content := event.Text.Content
	if content == "" {
		content = "[empty message]"
	}
	if isGroup && event.SenderNick != "" {
		content = fmt.Sprintf("[From: %s]\n%s", event.SenderNick, content)
	}

	slog.Debug("dingtalk message received",
		"sender_id", event.SenderID, "conversation_id", event.ConversationID,
		"preview", channels.Truncate(content, 50))

	metadata := map[string]string{
		"message_id":  event.MsgID,
		"sender_name": event.SenderNick,
	}
	c.HandleMessage(event.SenderID, event.ConversationID, content, nil, metadata, peerKind)
}
