package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/scheduler"
)

func TestCronToolCreateListDeleteRoundTrip(t *testing.T) {
	sched, err := scheduler.New("", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	tool := NewCronTool(sched)

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"action":  "create",
		"name":    "daily digest",
		"kind":    "EVERY",
		"everyMs": float64(60000),
		"message": "summarize today",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Created job") {
		t.Fatalf("got %q", out)
	}

	listOut, err := tool.Execute(context.Background(), map[string]interface{}{"action": "list"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(listOut, "daily digest") {
		t.Fatalf("got %q", listOut)
	}
}

func TestCronToolCreateRejectsMissingMessage(t *testing.T) {
	sched, _ := scheduler.New("", nil, nil)
	tool := NewCronTool(sched)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "create", "kind": "EVERY", "everyMs": float64(1000),
	})
	if err == nil {
		t.Fatal("expected an error for a missing message")
	}
}
