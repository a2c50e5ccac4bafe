// Package whatsapp adapts WhatsApp's multi-device protocol, via
// whatsmeow, to a channels.Channel. A single device pairs once (QR
// code, logged on the first Start) and its session persists in a
// local SQLite store so subsequent starts reconnect silently.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

// Channel connects to WhatsApp via whatsmeow's multi-device client.
type Channel struct {
	*channels.BaseChannel
	config config.WhatsAppConfig
	client *whatsmeow.Client
	store  *sqlstore.Container
	device *store.Device

	connMu    sync.RWMutex
	connected bool
	cancel    context.CancelFunc
}

// New creates a WhatsApp channel from config. The whatsmeow client
// isn't constructed until Start, since opening the session store
// needs a context.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.SessionFile == "" {
		return nil, fmt.Errorf("whatsapp session_file is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus, cfg.AllowFrom),
		config:      cfg,
	}, nil
}

// Start opens the local device store and connects to WhatsApp,
// prompting for a QR-code pairing scan the first time.
//
// TODO: surface the pairing QR code to an operator-facing surface
// (the `onboard` CLI subcommand, or the web console) instead of only
// logging it — whatsmeow.Client.GetQRChannel is the real pairing
// handshake and is used as-is here.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "session_file", c.config.SessionFile)

	sessionPath := config.ExpandHome(c.config.SessionFile)
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0o755); err != nil {
		return fmt.Errorf("create whatsapp session directory: %w", err)
	}

	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	defer cancelInit()
	container, err := sqlstore.New(initCtx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", sessionPath), waLog.Noop)
	if err != nil {
		return fmt.Errorf("open whatsapp session store: %w", err)
	}
	c.store = container

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	device, err := container.GetFirstDevice(runCtx)
	if err != nil {
		return fmt.Errorf("get whatsapp device: %w", err)
	}
	c.device = device

	c.client = whatsmeow.NewClient(device, waLog.Noop)
	c.client.AddEventHandler(c.handleEvent)

	if c.client.Store.ID == nil {
		qrChan, err := c.client.GetQRChannel(runCtx)
		if err != nil {
			return fmt.Errorf("get whatsapp QR channel: %w", err)
		}
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp client: %w", err)
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					slog.Info("whatsapp pairing: scan this QR code", "code", evt.Code)
				}
			}
		}()
	} else if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp client: %w", err)
	}

	c.SetRunning(true)
	return nil
}

// Stop disconnects the client and closes the session store.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")
	if c.cancel != nil {
		c.cancel()
	}
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			slog.Warn("failed to close whatsapp session store", "error", err)
		}
	}
	c.SetRunning(false)
	return nil
}

// Send delivers a text message to a WhatsApp JID. Media attachments
// aren't sent — whatsmeow's upload handshake needs per-media-type
// encryption that's out of scope for this adapter's outbound path.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("whatsapp client not running")
	}
	if msg.Content == "" {
		return nil
	}

	jid, err := types.ParseJID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid whatsapp JID %q: %w", msg.ChatID, err)
	}

	waMsg := &waE2E.Message{Conversation: proto.String(msg.Content)}
	if _, err := c.client.SendMessage(ctx, jid, waMsg); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

// handleEvent dispatches whatsmeow client events.
func (c *Channel) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		c.connMu.Lock()
		c.connected = true
		c.connMu.Unlock()
		slog.Info("whatsapp connected")
	case *events.Disconnected:
		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()
		slog.Warn("whatsapp disconnected")
	case *events.LoggedOut:
		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()
		slog.Warn("whatsapp logged out", "reason", v.Reason)
	case *events.Message:
		c.handleMessage(v)
	}
}

// handleMessage extracts text content from an inbound WhatsApp
// message, applies the DM/group policy and allow-list, and publishes
// it to the bus.
func (c *Channel) handleMessage(evt *events.Message) {
	if evt.Info.Chat.Server == "broadcast" {
		return
	}

	content := extractText(evt)
	if content == "" {
		return
	}

	isGroup := evt.Info.IsGroup
	peerKind := "direct"
	if isGroup {
		peerKind = "group"
	}

	senderID := evt.Info.Sender.User

	if !c.CheckPolicy(peerKind, c.config.DMPolicy, c.config.GroupPolicy, senderID) {
		slog.Debug("whatsapp message rejected by policy", "sender_id", senderID, "peer_kind", peerKind)
		return
	}
	if !c.IsAllowed(senderID) {
		slog.Debug("whatsapp message rejected by allowlist", "sender_id", senderID)
		return
	}

	slog.Debug("whatsapp message received",
		"sender_id", senderID, "chat", evt.Info.Chat.String(),
		"preview", channels.Truncate(content, 50))

	finalContent := content
	if isGroup {
		finalContent = fmt.Sprintf("[From: %s]\n%s", senderID, content)
	}

	c.HandleMessage(senderID, evt.Info.Chat.String(), finalContent, nil,
		map[string]string{"message_id": evt.Info.ID}, peerKind)
}

// extractText pulls the plain-text body out of a WhatsApp message,
// covering the two text message kinds whatsmeow delivers most
// commonly; media messages are ignored entirely (see Send's caption
// on attachment support).
func extractText(evt *events.Message) string {
	if evt.Message.Conversation != nil {
		return *evt.Message.Conversation
	}
	if evt.Message.ExtendedTextMessage != nil {
		return evt.Message.ExtendedTextMessage.GetText()
	}
	return ""
}
