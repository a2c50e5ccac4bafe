package camera

import (
	"context"
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/bus"
	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

func TestNewRequiresListenAddr(t *testing.T) {
	if _, err := New(config.CameraConfig{}, nil); err == nil {
		t.Fatal("expected error when listen_addr is empty")
	}
}

func TestSendErrorsWhenNotRunning(t *testing.T) {
	ch, err := New(config.CameraConfig{ListenAddr: ":0"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	msg := bus.OutboundMessage{ChatID: "dev1", Content: "hello"}
	if err := ch.Send(context.Background(), msg); err == nil {
		t.Fatal("expected error when channel not running")
	}
}

func TestHandleFrameIgnoresNonEventFrames(t *testing.T) {
	ch, err := New(config.CameraConfig{ListenAddr: ":0"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch.handleFrame("dev1", &frame{Type: "ack", Content: "ignored"}) // must not panic with nil bus
}
