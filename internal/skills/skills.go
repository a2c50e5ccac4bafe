// Package skills is a small external collaborator: it discovers
// Markdown-based skill definitions on disk and exposes only their
// names and descriptions to ContextBuilder's skills index. Skill
// bodies and gating/install metadata are not in scope here — the
// runtime only needs "what skills exist and what are they for".
package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SkillFilename        = "SKILL.md"
	frontmatterDelimiter = "---"
)

// Entry is a skill's discoverable identity: its name and description.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Index discovers skills under a single directory (<workspace>/skills/,
// one subdirectory per skill, each containing a SKILL.md).
type Index struct {
	dir string
	log *slog.Logger
}

func NewIndex(workspaceDir string) *Index {
	return &Index{
		dir: filepath.Join(workspaceDir, "skills"),
		log: slog.Default().With("component", "skills"),
	}
}

// List returns every valid skill found, sorted by discovery order
// (directory read order); missing or malformed skills are skipped
// with a warning, never aborting the scan.
func (i *Index) List() []Entry {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return nil
	}
	var out []Entry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		skillFile := filepath.Join(i.dir, e.Name(), SkillFilename)
		data, err := os.ReadFile(skillFile)
		if err != nil {
			continue
		}
		entry, err := parseSkill(data)
		if err != nil {
			i.log.Warn("skill skipped", "path", skillFile, "error", err)
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// Summary renders the names+descriptions index for ContextBuilder —
// never skill bodies.
func (i *Index) Summary() string {
	entries := i.List()
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseSkill(data []byte) (*Entry, error) {
	frontmatter, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := yaml.Unmarshal(frontmatter, &entry); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if entry.Name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if entry.Description == "" {
		return nil, fmt.Errorf("skill description is required")
	}
	return &entry, nil
}

func splitFrontmatter(data []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, fmt.Errorf("missing opening frontmatter delimiter")
	}
	var lines []string
	closed := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == frontmatterDelimiter {
			closed = true
			break
		}
		lines = append(lines, scanner.Text())
	}
	if !closed {
		return nil, fmt.Errorf("missing closing frontmatter delimiter")
	}
	return []byte(strings.Join(lines, "\n")), nil
}
