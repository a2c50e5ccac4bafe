// Package telegram adapts Telegram's long-polling Bot API to a
// channels.Channel. It is the one adapter that implements
// channels.StreamingChannel: partial LLM output is reflected by
// repeatedly editing the same "Thinking..." message in place.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/channels"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

const telegramMessageLimit = 4096

var _ channels.StreamingChannel = (*Channel)(nil)

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot            *telego.Bot
	config         config.TelegramConfig
	placeholders   sync.Map // chatID string → messageID int, pending "Thinking..." message
	requireMention bool
	pollCancel     context.CancelFunc
	pollDone       chan struct{}
}

// New creates a Telegram channel from config.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	requireMention := true
	if cfg.RequireMention != nil {
		requireMention = *cfg.RequireMention
	}

	return &Channel{
		BaseChannel:    channels.NewBaseChannel("telegram", msgBus, cfg.AllowFrom),
		bot:            bot,
		config:         cfg,
		requireMention: requireMention,
	}, nil
}

// Start begins long polling for Telegram updates.
//
// TODO: a production deployment should prefer webhooks over long
// polling to avoid the getUpdates lock contention noted in Stop; long
// polling is kept here because it needs no public ingress endpoint.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// StreamEnabled reports whether partial-response streaming is on for
// this channel (stream_mode "partial"; default off).
func (c *Channel) StreamEnabled() bool {
	return c.config.StreamMode == "partial"
}

// Stop cancels long polling and waits for the poll goroutine to exit,
// so Telegram releases the getUpdates lock before a new instance starts.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

// Send delivers an outbound message, editing the chat's "Thinking..."
// placeholder in place when one is pending, chunking over Telegram's
// 4096-character message limit otherwise.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}
	chatIDObj := tu.ID(chatID)

	content := msg.Content
	if content == "" {
		if pID, ok := c.placeholders.LoadAndDelete(msg.ChatID); ok {
			_ = c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: chatIDObj, MessageID: pID.(int)})
		}
		return nil
	}

	if pID, ok := c.placeholders.LoadAndDelete(msg.ChatID); ok {
		editContent, remaining := content, ""
		if len(editContent) > telegramMessageLimit {
			editContent, remaining = content[:telegramMessageLimit], content[telegramMessageLimit:]
		}
		edit := &telego.EditMessageTextParams{ChatID: chatIDObj, MessageID: pID.(int), Text: editContent}
		if _, err := c.bot.EditMessageText(ctx, edit); err == nil {
			if remaining != "" {
				return c.sendChunked(ctx, chatIDObj, remaining)
			}
			return nil
		}
		slog.Warn("telegram: placeholder edit failed, sending new message", "chat_id", msg.ChatID)
	}

	return c.sendChunked(ctx, chatIDObj, content)
}

func (c *Channel) sendChunked(ctx context.Context, chatIDObj telego.ChatID, content string) error {
	for len(content) > 0 {
		chunk := content
		if len(chunk) > telegramMessageLimit {
			chunk, content = content[:telegramMessageLimit], content[telegramMessageLimit:]
		} else {
			content = ""
		}
		if _, err := c.bot.SendMessage(ctx, tu.Message(chatIDObj, chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// OnStreamStart sends the placeholder message a streaming turn will
// progressively edit.
func (c *Channel) OnStreamStart(ctx context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	placeholder, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(id), "Thinking..."))
	if err != nil {
		return fmt.Errorf("send streaming placeholder: %w", err)
	}
	c.placeholders.Store(chatID, placeholder.MessageID)
	return nil
}

// OnChunkEvent edits the streaming placeholder with the latest
// accumulated text.
func (c *Channel) OnChunkEvent(ctx context.Context, chatID string, fullText string) error {
	pID, ok := c.placeholders.Load(chatID)
	if !ok {
		return nil
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	text := fullText
	if len(text) > telegramMessageLimit {
		text = text[:telegramMessageLimit]
	}
	_, err = c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{ChatID: tu.ID(id), MessageID: pID.(int), Text: text})
	return err
}

// OnStreamEnd edits the placeholder with the final text; Send's own
// placeholder handling will no-op since the entry has already been
// deleted here, keeping a single definitive edit at stream end.
func (c *Channel) OnStreamEnd(ctx context.Context, chatID string, finalText string) error {
	pID, ok := c.placeholders.LoadAndDelete(chatID)
	if !ok {
		return nil
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	text := finalText
	if len(text) > telegramMessageLimit {
		text = text[:telegramMessageLimit]
	}
	_, err = c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{ChatID: tu.ID(id), MessageID: pID.(int), Text: text})
	return err
}

// handleMessage processes an incoming Telegram message, applying the
// DM/group policy and mention gate, then publishes it to the bus.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if isServiceMessage(message) {
		return
	}
	user := message.From
	if user == nil {
		return
	}

	userID := fmt.Sprintf("%d", user.ID)
	senderID := userID
	if user.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, user.Username)
	}

	isGroup := message.Chat.Type == "group" || message.Chat.Type == "supergroup"
	peerKind := "direct"
	if isGroup {
		peerKind = "group"
	}

	if !c.CheckPolicy(peerKind, c.config.DMPolicy, c.config.GroupPolicy, senderID) {
		slog.Debug("telegram message rejected by policy", "user_id", userID, "peer_kind", peerKind)
		return
	}
	if !c.IsAllowed(userID) && !c.IsAllowed(senderID) {
		slog.Debug("telegram message rejected by allowlist", "user_id", userID)
		return
	}

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}
	if content == "" {
		content = "[empty message]"
	}

	senderLabel := user.FirstName
	if user.Username != "" {
		senderLabel = "@" + user.Username
	}

	if isGroup && c.requireMention && !c.detectMention(message) {
		slog.Debug("telegram group message skipped (no mention)", "chat_id", message.Chat.ID)
		return
	}

	slog.Debug("telegram message received",
		"sender_id", senderID, "chat_id", message.Chat.ID,
		"preview", channels.Truncate(content, 50))

	chatID := message.Chat.ID
	chatIDStr := fmt.Sprintf("%d", chatID)

	_ = c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping))

	if !c.StreamEnabled() {
		placeholder, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), "Thinking..."))
		if err == nil {
			c.placeholders.Store(chatIDStr, placeholder.MessageID)
		}
	}

	finalContent := content
	if isGroup {
		finalContent = fmt.Sprintf("[From: %s]\n%s", senderLabel, content)
	}

	metadata := map[string]string{
		"message_id": fmt.Sprintf("%d", message.MessageID),
		"username":   user.Username,
		"first_name": user.FirstName,
	}

	c.HandleMessage(senderID, chatIDStr, finalContent, nil, metadata, peerKind)
}

// detectMention reports whether the bot's username is @-mentioned in
// the message text/caption entities, as a plain substring, or the
// message replies to one of the bot's own messages.
func (c *Channel) detectMention(msg *telego.Message) bool {
	botUsername := c.bot.Username()
	if botUsername == "" {
		return false
	}
	lowerBot := strings.ToLower(botUsername)

	for _, text := range []string{msg.Text, msg.Caption} {
		if text != "" && strings.Contains(strings.ToLower(text), "@"+lowerBot) {
			return true
		}
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.Username == botUsername {
		return true
	}
	return false
}

// isServiceMessage reports whether msg is a system event (member
// added/removed, title changed, etc.) rather than user content.
func isServiceMessage(msg *telego.Message) bool {
	if msg.Text != "" || msg.Caption != "" {
		return false
	}
	return msg.Photo == nil && msg.Audio == nil && msg.Video == nil &&
		msg.Document == nil && msg.Voice == nil && msg.VideoNote == nil &&
		msg.Sticker == nil && msg.Animation == nil && msg.Contact == nil &&
		msg.Location == nil && msg.Venue == nil && msg.Poll == nil
}

// parseChatID converts a string chat ID to int64.
func parseChatID(chatIDStr string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(chatIDStr, "%d", &id)
	return id, err
}
