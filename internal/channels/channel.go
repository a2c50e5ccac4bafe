// Package channels implements ChannelManager: a Channel interface per
// external chat platform (Telegram, Discord, WhatsApp, Feishu,
// DingTalk, QQ, a camera-device socket), a shared DM/Group allow-list
// policy, and a Manager that starts/stops every configured adapter and
// dispatches outbound replies from the bus to the right one.
package channels

import (
	"context"
	"strings"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
)

// InternalChannels are system-originated session scopes excluded from
// outbound dispatch (the CLI, system runs, sub-agent runs).
var InternalChannels = map[string]bool{
	"cli":      true,
	"system":   true,
	"subagent": true,
}

// IsInternalChannel reports whether name is a system channel.
func IsInternalChannel(name string) bool {
	return InternalChannels[name]
}

// DMPolicy controls how direct messages from unknown senders are handled.
type DMPolicy string

const (
	DMPolicyAllowlist DMPolicy = "allowlist" // only allow-listed senders
	DMPolicyOpen      DMPolicy = "open"      // accept all
	DMPolicyDisabled  DMPolicy = "disabled"  // reject all DMs
)

// GroupPolicy controls how group messages are handled.
type GroupPolicy string

const (
	GroupPolicyOpen      GroupPolicy = "open"
	GroupPolicyAllowlist GroupPolicy = "allowlist"
	GroupPolicyDisabled  GroupPolicy = "disabled"
)

// Channel is the contract every platform adapter satisfies: construct,
// Start/Stop, Send an outbound reply, and gate senders via IsAllowed.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// StreamingChannel extends Channel with incremental response preview
// (e.g. editing a message in place as content streams in). Wired for
// Telegram only, the most complete adapter.
type StreamingChannel interface {
	Channel
	StreamEnabled() bool
	OnStreamStart(ctx context.Context, chatID string) error
	OnChunkEvent(ctx context.Context, chatID string, fullText string) error
	OnStreamEnd(ctx context.Context, chatID string, finalText string) error
}

// ReactionChannel extends Channel with emoji-reaction status signalling.
type ReactionChannel interface {
	Channel
	OnReactionEvent(ctx context.Context, chatID string, messageID int, status string) error
	ClearReaction(ctx context.Context, chatID string, messageID int) error
}

// BaseChannel holds the state shared by every adapter. Adapters embed it.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	running   bool
	allowList []string
}

// NewBaseChannel constructs the shared channel state.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) IsRunning() bool { return c.running }

func (c *BaseChannel) SetRunning(running bool) { c.running = running }

func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks a sender against the allow-list. A compound
// "id|username" form is accepted on either side of the comparison. An
// empty allow-list permits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart, userPart := splitCompoundID(senderID)

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID, allowedUser := splitCompoundID(trimmed)

		if senderID == allowed || senderID == trimmed ||
			idPart == allowed || idPart == trimmed || idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == allowed || userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}
	return false
}

func splitCompoundID(s string) (id, user string) {
	if idx := strings.Index(s, "|"); idx > 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

// CheckPolicy applies the DM or Group policy (whichever peerKind
// selects) to decide whether an inbound message should be accepted.
func (c *BaseChannel) CheckPolicy(peerKind, dmPolicy, groupPolicy, senderID string) bool {
	policy := dmPolicy
	if peerKind == "group" {
		policy = groupPolicy
	}
	if policy == "" {
		policy = string(GroupPolicyOpen)
	}

	switch policy {
	case string(DMPolicyDisabled), string(GroupPolicyDisabled):
		return false
	case string(DMPolicyAllowlist), string(GroupPolicyAllowlist):
		return c.IsAllowed(senderID)
	default:
		return true
	}
}

// HandleMessage builds an InboundMessage from a raw platform event and
// publishes it to the bus, after an allow-list check.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, media []string, metadata map[string]string, peerKind string) {
	if !c.IsAllowed(senderID) {
		return
	}

	userID := senderID
	if idx := strings.IndexByte(senderID, '|'); idx > 0 {
		userID = senderID[:idx]
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		PeerKind: peerKind,
		UserID:   userID,
		Metadata: metadata,
	})
}

// Truncate shortens s to its first maxLen bytes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
