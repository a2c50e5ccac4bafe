package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "skills", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, SkillFilename), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexListsValidSkills(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "weather", "---\nname: weather\ndescription: fetch forecasts\n---\n\nbody here\n")

	idx := NewIndex(ws)
	entries := idx.List()
	if len(entries) != 1 || entries[0].Name != "weather" {
		t.Fatalf("got %+v", entries)
	}
}

func TestIndexSkipsMalformedSkill(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "broken", "no frontmatter here at all")
	writeSkill(t, ws, "ok", "---\nname: ok\ndescription: fine\n---\n")

	idx := NewIndex(ws)
	entries := idx.List()
	if len(entries) != 1 || entries[0].Name != "ok" {
		t.Fatalf("expected only the valid skill, got %+v", entries)
	}
}

func TestSummaryOmittedWhenNoSkills(t *testing.T) {
	idx := NewIndex(t.TempDir())
	if idx.Summary() != "" {
		t.Fatal("expected empty summary with no skills directory")
	}
}
