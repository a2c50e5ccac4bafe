package discord

import (
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
)

func TestLastIndexByte(t *testing.T) {
	if got := lastIndexByte("hello\nworld", '\n'); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
	if got := lastIndexByte("no-newline", '\n'); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}

func TestNewConstructsSessionWithoutConnecting(t *testing.T) {
	ch, err := New(config.DiscordConfig{Token: "fake-token"}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if ch.Name() != "discord" {
		t.Fatalf("got name %q, want discord", ch.Name())
	}
	if ch.IsRunning() {
		t.Fatal("expected channel to not be running before Start")
	}
	if !ch.requireMention {
		t.Fatal("expected requireMention to default to true")
	}
}

func TestNewHonorsExplicitRequireMentionFalse(t *testing.T) {
	no := false
	ch, err := New(config.DiscordConfig{Token: "fake-token", RequireMention: &no}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if ch.requireMention {
		t.Fatal("expected requireMention to be false")
	}
}
