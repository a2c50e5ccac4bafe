// Package qq adapts Tencent QQ's guild/C2C bot webhook API to a
// channels.Channel. Inbound events arrive as a webhook callback
// routed in by internal/webhook; outbound replies use QQ's bot-token
// REST API directly over net/http.
package qq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

const apiBase = "https://api.sgroup.qq.com"

// envelope is QQ's webhook callback wrapper: op 13 is the one-time
// URL-validation handshake, op 0 carries a named event in D.
type envelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	D  json.RawMessage `json:"d"`
}

// validationPayload is the op-13 validation request body.
type validationPayload struct {
	PlainToken string `json:"plain_token"`
	EventTS    string `json:"event_ts"`
}

// messagePayload covers the fields this adapter reads from
// C2C_MESSAGE_CREATE and GROUP_AT_MESSAGE_CREATE events.
type messagePayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  struct {
		ID     string `json:"id"`
		UserOpenID string `json:"user_openid"`
		MemberOpenID string `json:"member_openid"`
	} `json:"author"`
	GroupOpenID string `json:"group_openid"`
}

// Channel connects to QQ via its guild/C2C bot REST + webhook API.
type Channel struct {
	*channels.BaseChannel
	cfg        config.QQConfig
	httpClient *http.Client
}

var _ channels.Channel = (*Channel)(nil)

// New creates a QQ channel from config.
func New(cfg config.QQConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.AppID == "" || cfg.Token == "" {
		return nil, fmt.Errorf("qq app_id and token are required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("qq", msgBus, cfg.AllowFrom),
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Start marks the channel running. Inbound delivery is owned by
// internal/webhook; there's no connection of this adapter's own to
// open.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting qq bot (webhook mode)")
	c.SetRunning(true)
	return nil
}

// Stop marks the channel as no longer running.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping qq bot")
	c.SetRunning(false)
	return nil
}

// Send posts a text reply. ChatID is either a C2C user's user_openid
// or a group's group_openid, disambiguated by the msg.Metadata
// "peer_kind" value set by HandleMessage on the inbound side.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("qq bot not running")
	}
	if msg.Content == "" {
		return nil
	}

	isGroup := msg.Metadata != nil && msg.Metadata["peer_kind"] == "group"
	path := fmt.Sprintf("/v2/users/%s/messages", msg.ChatID)
	if isGroup {
		path = fmt.Sprintf("/v2/groups/%s/messages", msg.ChatID)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"content": msg.Content,
		"msg_type": 0,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build qq request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bot %s.%s", c.cfg.AppID, c.cfg.Token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send qq message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("qq send error: status=%d code=%d msg=%s", resp.StatusCode, errResp.Code, errResp.Message)
	}
	return nil
}

// ProcessWebhookEvent handles one HTTP POST body delivered by
// internal/webhook's /webhook/qq endpoint.
//
// TODO: QQ's op-13 validation handshake expects the response body
// signed with an Ed25519 key derived from cfg.Secret — signature
// generation isn't implemented here, so validation responses echo the
// plain_token unsigned. Real deployments need the signing step added
// before QQ will accept the webhook URL.
func (c *Channel) ProcessWebhookEvent(_ context.Context, payload []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse qq webhook payload: %w", err)
	}

	if env.Op == 13 {
		var v validationPayload
		if err := json.Unmarshal(env.D, &v); err != nil {
			return nil, fmt.Errorf("parse qq validation payload: %w", err)
		}
		resp, _ := json.Marshal(map[string]string{"plain_token": v.PlainToken, "signature": ""})
		return resp, nil
	}

	switch env.T {
	case "C2C_MESSAGE_CREATE", "GROUP_AT_MESSAGE_CREATE":
		var msg messagePayload
		if err := json.Unmarshal(env.D, &msg); err != nil {
			return nil, fmt.Errorf("parse qq message payload: %w", err)
		}
		c.handleMessage(env.T, &msg)
	}
	return nil, nil
}

func (c *Channel) handleMessage(eventType string, msg *messagePayload) {
	if msg.ID == "" {
		return
	}

	isGroup := eventType == "GROUP_AT_MESSAGE_CREATE"
	peerKind := "direct"
	senderID := msg.Author.UserOpenID
	chatID := senderID
	if isGroup {
		peerKind = "group"
		senderID = msg.Author.MemberOpenID
		chatID = msg.GroupOpenID
	}

	if !c.CheckPolicy(peerKind, c.cfg.DMPolicy, "", senderID) {
		slog.Debug("qq message rejected by policy", "sender_id", senderID, "peer_kind", peerKind)
		return
	}
	if !c.IsAllowed(senderID) {
		slog.Debug("qq message rejected by allowlist", "sender_id", senderID)
		return
	}

	content := msg.Content
	if content == "" {
		content = "[empty message]"
	}

	slog.Debug("qq message received",
		"sender_id", senderID, "chat_id", chatID,
		"preview", channels.Truncate(content, 50))

	metadata := map[string]string{
		"message_id": msg.ID,
		"peer_kind":  peerKind,
	}
	c.HandleMessage(senderID, chatID, content, nil, metadata, peerKind)
}
