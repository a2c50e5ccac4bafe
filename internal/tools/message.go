package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
)

// MessageTool lets the agent proactively send a message to a chat on a
// named channel, independent of replying to the turn that invoked it.
type MessageTool struct {
	router bus.MessageRouter
	known  map[string]bool
}

func NewMessageTool(router bus.MessageRouter, knownChannels []string) *MessageTool {
	known := make(map[string]bool, len(knownChannels))
	for _, c := range knownChannels {
		known[c] = true
	}
	return &MessageTool{router: router, known: known}
}

func (t *MessageTool) Name() string        { return "message" }
func (t *MessageTool) Description() string { return "Send a message to a chat on a named channel." }
func (t *MessageTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"channel": map[string]interface{}{"type": "string", "description": "The target channel name (e.g. \"telegram\", \"discord\")."},
			"chat_id": map[string]interface{}{"type": "string", "description": "The target chat/conversation ID."},
			"content": map[string]interface{}{"type": "string", "description": "The message text to send."},
		},
		"required": []string{"channel", "chat_id", "content"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)
	content, _ := args["content"].(string)

	if channel == "" || chatID == "" || strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("channel, chat_id, and content are required")
	}
	if !t.known[channel] {
		return "", fmt.Errorf("channel %q is not registered", channel)
	}

	t.router.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	})
	return fmt.Sprintf("Message queued for %s:%s", channel, chatID), nil
}
