package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/security"
)

func TestExecToolRunsCommandAndReportsExitCode(t *testing.T) {
	guard, _ := newTestGuard(t)
	e := NewExecTool(guard)

	out, err := e.Execute(context.Background(), map[string]interface{}{"command": "echo hi"})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(out, "hi") || !strings.Contains(out, "[exit_code: 0]") {
		t.Fatalf("got %q", out)
	}
}

func TestExecToolReportsNonZeroExit(t *testing.T) {
	guard, _ := newTestGuard(t)
	e := NewExecTool(guard)

	out, err := e.Execute(context.Background(), map[string]interface{}{"command": "exit 7"})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(out, "[exit_code: 7]") {
		t.Fatalf("got %q", out)
	}
}

func TestExecToolHonorsTimeoutMsOverride(t *testing.T) {
	guard, _ := newTestGuard(t)
	e := NewExecTool(guard)

	out, err := e.Execute(context.Background(), map[string]interface{}{
		"command":    "sleep 1",
		"timeout_ms": float64(50),
	})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(out, "[timed out]") {
		t.Fatalf("expected a timeout, got %q", out)
	}
}

func TestExecToolRejectsNonPositiveTimeoutMs(t *testing.T) {
	guard, _ := newTestGuard(t)
	e := NewExecTool(guard)

	_, err := e.Execute(context.Background(), map[string]interface{}{
		"command":    "echo hi",
		"timeout_ms": float64(0),
	})
	if err == nil {
		t.Fatal("expected an error for a non-positive timeout_ms")
	}
}

func TestExecToolDeniesBlacklistedCommand(t *testing.T) {
	guard, _ := newTestGuard(t)
	e := NewExecTool(guard)

	out, err := e.Execute(context.Background(), map[string]interface{}{"command": "rm -rf /"})
	if err != nil {
		t.Fatalf("unexpected error (denial is data, not an error): %v", err)
	}
	if !strings.Contains(out, "denied") {
		t.Fatalf("got %q", out)
	}
}
