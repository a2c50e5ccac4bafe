// Package context implements ContextBuilder: a pure function that
// assembles the ordered message list sent to the LLM from a session's
// history, its summary, ambient workspace files, the tool registry
// summary, the skills index, and MemoryStore — without mutating
// Session or calling out.
package context

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinyclaw-run/tinyclaw/internal/providers"
)

// bootstrapFiles are the workspace guide files read, in order, into
// the identity section of the system message. Missing files are
// simply omitted.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "IDENTITY.md"}

// ToolSummaries is satisfied by the tool registry.
type ToolSummaries interface {
	Summaries() string
}

// SkillsIndex is satisfied by the skills package's Index.
type SkillsIndex interface {
	Summary() string
}

// MemorySource is satisfied by the memory package's Store.
type MemorySource interface {
	GetMemoryContext() string
}

// Builder assembles messages for a single workspace. It holds no
// per-turn mutable state — every method is pure given its arguments
// plus the workspace's on-disk guide files.
type Builder struct {
	workspace string
	tools     ToolSummaries
	skills    SkillsIndex
	memory    MemorySource
}

func NewBuilder(workspace string, tools ToolSummaries, skills SkillsIndex, memory MemorySource) *Builder {
	return &Builder{workspace: workspace, tools: tools, skills: skills, memory: memory}
}

// BuildSystemPrompt joins every available section with a "---"
// separator line. Missing sources are omitted entirely, not rendered
// as empty headers.
func (b *Builder) BuildSystemPrompt(channel, chatID, summary string) string {
	var parts []string

	if id := b.identitySection(); id != "" {
		parts = append(parts, id)
	}
	if guides := b.loadBootstrapFiles(); guides != "" {
		parts = append(parts, guides)
	}
	if b.tools != nil {
		if s := b.tools.Summaries(); s != "" {
			parts = append(parts, "# Tools\n\n"+s)
		}
	}
	if b.skills != nil {
		if s := b.skills.Summary(); s != "" {
			parts = append(parts, "# Skills\n\n"+s)
		}
	}
	if b.memory != nil {
		if s := b.memory.GetMemoryContext(); s != "" {
			parts = append(parts, "# Memory\n\n"+s)
		}
	}
	if channel != "" && chatID != "" {
		parts = append(parts, fmt.Sprintf("# Current Session\n\nChannel: %s\nChat ID: %s", channel, chatID))
	}
	if summary != "" {
		parts = append(parts, "# Summary of Previous Conversation\n\n"+summary)
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (b *Builder) identitySection() string {
	ws, err := filepath.Abs(b.workspace)
	if err != nil {
		ws = b.workspace
	}
	return fmt.Sprintf("# Identity\n\nYou are a personal AI assistant with a persistent workspace and a set of tools you can call to act on the user's behalf.\n\nWorkspace: %s", ws)
}

func (b *Builder) loadBootstrapFiles() string {
	var out strings.Builder
	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(b.workspace, name))
		if err != nil {
			continue
		}
		fmt.Fprintf(&out, "## %s\n\n%s\n\n", name, strings.TrimSpace(string(data)))
	}
	return strings.TrimSpace(out.String())
}

// BuildMessages produces: one system message, the stored history
// unchanged, then the new user message. It never mutates history or
// calls out — everything it reads (bootstrap files, tool summaries,
// skills index, memory) is read fresh on each call.
func (b *Builder) BuildMessages(history []providers.Message, summary, userMessage, channel, chatID string) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: b.BuildSystemPrompt(channel, chatID, summary),
	})
	messages = append(messages, history...)
	messages = append(messages, providers.Message{
		Role:    "user",
		Content: userMessage,
	})
	return messages
}
