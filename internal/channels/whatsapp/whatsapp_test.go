package whatsapp

import (
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

func TestExtractTextPrefersConversation(t *testing.T) {
	evt := &events.Message{
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	}
	if got := extractText(evt); got != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTextFallsBackToExtendedText(t *testing.T) {
	evt := &events.Message{
		Message: &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted reply")},
		},
	}
	if got := extractText(evt); got != "quoted reply" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractTextEmptyForMediaOnlyMessage(t *testing.T) {
	evt := &events.Message{Message: &waE2E.Message{}}
	if got := extractText(evt); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestNewRequiresSessionFile(t *testing.T) {
	if _, err := New(config.WhatsAppConfig{}, nil); err == nil {
		t.Fatal("expected error when session_file is empty")
	}
}
