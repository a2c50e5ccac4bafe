package qq

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

func TestNewRequiresAppCredentials(t *testing.T) {
	if _, err := New(config.QQConfig{}, nil); err == nil {
		t.Fatal("expected error when app_id/token are empty")
	}
}

func TestProcessWebhookEventValidation(t *testing.T) {
	ch, err := New(config.QQConfig{AppID: "a", Token: "t"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte(`{"op":13,"d":{"plain_token":"tok123","event_ts":"1"}}`)
	resp, err := ch.ProcessWebhookEvent(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		PlainToken string `json:"plain_token"`
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.PlainToken != "tok123" {
		t.Fatalf("got %q", decoded.PlainToken)
	}
}

func TestHandleMessageSkipsEmptyMessageID(t *testing.T) {
	ch, err := New(config.QQConfig{AppID: "a", Token: "t"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch.handleMessage("C2C_MESSAGE_CREATE", &messagePayload{}) // must not panic with nil bus
}
