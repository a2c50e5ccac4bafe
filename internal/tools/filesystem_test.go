package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyclaw-run/tinyclaw/internal/security"
)

func newTestGuard(t *testing.T) (*security.Guard, string) {
	t.Helper()
	ws := t.TempDir()
	g, err := security.New(security.Policy{WorkspaceRoot: ws, RestrictToWorkspace: true})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return g, ws
}

func TestWriteThenReadFileRoundTrips(t *testing.T) {
	guard, ws := newTestGuard(t)
	w := NewWriteFileTool(ws, guard)
	r := NewReadFileTool(ws, guard)

	if _, err := w.Execute(context.Background(), map[string]interface{}{"path": "notes/a.txt", "content": "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := r.Execute(context.Background(), map[string]interface{}{"path": "notes/a.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestReadFileDeniesOutsideWorkspace(t *testing.T) {
	guard, ws := newTestGuard(t)
	r := NewReadFileTool(ws, guard)

	out, err := r.Execute(context.Background(), map[string]interface{}{"path": "../../etc/passwd"})
	if err != nil {
		t.Fatalf("unexpected error (should be a denial string, not an error): %v", err)
	}
	if out == "" {
		t.Fatal("expected a denial message, got empty string")
	}
}

func TestAppendFileAppendsNotOverwrites(t *testing.T) {
	guard, ws := newTestGuard(t)
	w := NewWriteFileTool(ws, guard)
	a := NewAppendFileTool(ws, guard)
	r := NewReadFileTool(ws, guard)

	w.Execute(context.Background(), map[string]interface{}{"path": "log.txt", "content": "a"})
	a.Execute(context.Background(), map[string]interface{}{"path": "log.txt", "content": "b"})
	got, _ := r.Execute(context.Background(), map[string]interface{}{"path": "log.txt"})
	if got != "ab" {
		t.Fatalf("got %q, want %q", got, "ab")
	}
}

func TestEditFileSingleVsAllOccurrence(t *testing.T) {
	guard, ws := newTestGuard(t)
	w := NewWriteFileTool(ws, guard)
	e := NewEditFileTool(ws, guard)
	r := NewReadFileTool(ws, guard)

	w.Execute(context.Background(), map[string]interface{}{"path": "f.txt", "content": "foo foo foo"})
	if _, err := e.Execute(context.Background(), map[string]interface{}{"path": "f.txt", "find": "foo", "replace": "bar"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, _ := r.Execute(context.Background(), map[string]interface{}{"path": "f.txt"})
	if got != "bar foo foo" {
		t.Fatalf("got %q", got)
	}

	if _, err := e.Execute(context.Background(), map[string]interface{}{"path": "f.txt", "find": "foo", "replace": "bar", "all": true}); err != nil {
		t.Fatalf("edit all: %v", err)
	}
	got, _ = r.Execute(context.Background(), map[string]interface{}{"path": "f.txt"})
	if got != "bar bar bar" {
		t.Fatalf("got %q", got)
	}
}

func TestEditFileMissingFindErrors(t *testing.T) {
	guard, ws := newTestGuard(t)
	w := NewWriteFileTool(ws, guard)
	e := NewEditFileTool(ws, guard)

	w.Execute(context.Background(), map[string]interface{}{"path": "f.txt", "content": "hello"})
	if _, err := e.Execute(context.Background(), map[string]interface{}{"path": "f.txt", "find": "nope", "replace": "x"}); err == nil {
		t.Fatal("expected an error for a find string not present")
	}
}

func TestListDirListsFilesAndDirs(t *testing.T) {
	guard, ws := newTestGuard(t)
	if err := os.MkdirAll(filepath.Join(ws, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "top.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewListDirTool(ws, guard)
	out, err := l.Execute(context.Background(), map[string]interface{}{"path": "."})
	if err != nil {
		t.Fatalf("list_dir: %v", err)
	}
	if !strings.Contains(out, "sub/") || !strings.Contains(out, "top.txt") {
		t.Fatalf("got %q", out)
	}
}
