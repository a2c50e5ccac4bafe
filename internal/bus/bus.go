package bus

import (
	"context"
	"log/slog"
	"sync"
)

const defaultQueueCapacity = 100

// MessageBus is the in-process implementation of MessageRouter: two
// bounded channels carrying InboundMessage and OutboundMessage between
// channel adapters and the agent runtime. A full inbound queue drops
// the message rather than blocking the channel adapter that produced
// it (a slow or stalled agent must never wedge a Telegram/Discord
// webhook handler); the drop is logged so it's visible in practice.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu         sync.RWMutex
	publishers map[string]EventHandler

	log *slog.Logger
}

// NewMessageBus creates a MessageBus with the given queue capacity. A
// capacity <= 0 uses the default (100).
func NewMessageBus(capacity int) *MessageBus {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &MessageBus{
		inbound:    make(chan InboundMessage, capacity),
		outbound:   make(chan OutboundMessage, capacity),
		publishers: make(map[string]EventHandler),
		log:        slog.Default().With("component", "bus"),
	}
}

// PublishInbound enqueues a message from a channel adapter. Non-blocking:
// if the queue is full the message is dropped and a warning logged.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		b.log.Warn("inbound queue full, dropping message",
			"channel", msg.Channel, "chat", msg.ChatID)
	}
}

// ConsumeInbound blocks until a message is available or ctx is done.
// The bool is false only when ctx was cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a reply for delivery by a channel adapter.
// Non-blocking: if the queue is full the reply is dropped and a warning
// logged, rather than stalling the agent loop that produced it.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		b.log.Warn("outbound queue full, dropping message",
			"channel", msg.Channel, "chat", msg.ChatID)
	}
}

// SubscribeOutbound blocks until a reply is available or ctx is done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Subscribe registers an EventHandler under id for Broadcast delivery.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishers[id] = handler
}

// Unsubscribe removes a previously registered handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.publishers, id)
}

// Broadcast delivers event to every subscribed handler synchronously.
// A handler is expected to be cheap (e.g. push onto a websocket write
// channel); it must not block on network I/O.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.publishers))
	for _, h := range b.publishers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

var _ MessageRouter = (*MessageBus)(nil)
var _ EventPublisher = (*MessageBus)(nil)
