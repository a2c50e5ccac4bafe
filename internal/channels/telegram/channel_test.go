package telegram

import (
	"testing"

	"github.com/mymmrac/telego"
)

func TestParseChatID(t *testing.T) {
	id, err := parseChatID("-10012345")
	if err != nil {
		t.Fatal(err)
	}
	if id != -10012345 {
		t.Fatalf("got %d", id)
	}
}

func TestIsServiceMessageDetectsContentlessEvents(t *testing.T) {
	if !isServiceMessage(&telego.Message{}) {
		t.Fatal("expected empty message to be a service message")
	}
	if isServiceMessage(&telego.Message{Text: "hello"}) {
		t.Fatal("expected text message to not be a service message")
	}
}
