package bus

import (
	"context"
	"testing"
	"time"
)

func TestMessageBusInboundRoundTrip(t *testing.T) {
	b := NewMessageBus(2)
	b.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := b.ConsumeInbound(ctx)
	if !ok || msg.Content != "hi" {
		t.Fatalf("got %+v, ok=%v", msg, ok)
	}
}

func TestMessageBusOutboundRoundTrip(t *testing.T) {
	b := NewMessageBus(2)
	b.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "42", Content: "reply"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, ok := b.SubscribeOutbound(ctx)
	if !ok || msg.Content != "reply" {
		t.Fatalf("got %+v, ok=%v", msg, ok)
	}
}

func TestMessageBusDropsOnFullQueue(t *testing.T) {
	b := NewMessageBus(1)
	b.PublishInbound(InboundMessage{Content: "first"})
	b.PublishInbound(InboundMessage{Content: "second"}) // dropped, queue full

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	msg, ok := b.ConsumeInbound(ctx)
	if !ok || msg.Content != "first" {
		t.Fatalf("expected first message to survive, got %+v ok=%v", msg, ok)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, ok := b.ConsumeInbound(ctx2); ok {
		t.Fatal("expected queue to be empty after the drop")
	}
}

func TestMessageBusConsumeInboundRespectsContextCancellation(t *testing.T) {
	b := NewMessageBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Fatal("expected ConsumeInbound to return false on a cancelled context")
	}
}

func TestMessageBusBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewMessageBus(1)
	var gotA, gotB Event
	b.Subscribe("a", func(e Event) { gotA = e })
	b.Subscribe("b", func(e Event) { gotB = e })

	b.Broadcast(Event{Name: "health"})

	if gotA.Name != "health" || gotB.Name != "health" {
		t.Fatalf("expected both subscribers to receive the event, got %+v %+v", gotA, gotB)
	}

	b.Unsubscribe("a")
	b.Broadcast(Event{Name: "second"})
	if gotA.Name != "health" {
		t.Fatal("unsubscribed handler should not have been invoked again")
	}
	if gotB.Name != "second" {
		t.Fatal("remaining subscriber should still receive events")
	}
}
