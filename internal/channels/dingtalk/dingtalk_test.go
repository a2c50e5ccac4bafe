package dingtalk

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

func TestSignedWebhookURLAppendsSignature(t *testing.T) {
	signed, err := signedWebhookURL("https://oapi.dingtalk.com/robot/send?access_token=abc", "shh")
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("timestamp") == "" || q.Get("sign") == "" {
		t.Fatalf("expected timestamp and sign query params, got %q", signed)
	}
	if q.Get("access_token") != "abc" {
		t.Fatalf("expected original query preserved, got %q", signed)
	}
}

func TestSignedWebhookURLNoSecretIsNoop(t *testing.T) {
	got, err := signedWebhookURL("https://example.com/webhook", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/webhook" {
		t.Fatalf("got %q", got)
	}
}

func TestHandleInboundSkipsUnmentionedGroupMessage(t *testing.T) {
	ch, err := New(config.DingTalkConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	event := &inboundEvent{MsgID: "m1", ConversationID: "c1", ConversationType: "2", SenderID: "u1", IsInAtList: false}
	event.Text.Content = "hello"
	ch.handleInbound(event) // must not panic with a nil bus when the message is filtered out
}

func TestResolveWebhookErrorsWithoutSessionOrFallback(t *testing.T) {
	ch, err := New(config.DingTalkConfig{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ch.resolveWebhook("nonexistent-chat"); err == nil {
		t.Fatal("expected error when no session webhook is cached and no fallback is configured")
	}
}

func TestParseInboundEventJSON(t *testing.T) {
	raw := `{"msgId":"1","conversationId":"c1","conversationType":"1","senderId":"u1","text":{"content":"hi"}}`
	var event inboundEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatal(err)
	}
	if event.Text.Content != "hi" || !strings.Contains(event.ConversationID, "c1") {
		t.Fatalf("got %+v", event)
	}
}
