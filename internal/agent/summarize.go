package agent

import (
	"context"
	"fmt"

	"github.com/tinyclaw-run/tinyclaw/internal/providers"
)

// Summarisation thresholds: history either grows past msgThreshold
// messages or the estimated token count crosses tokenFraction of the
// context window, whichever comes first.
const (
	msgThreshold  = 20   // history.size >= this triggers summarisation
	tokenFraction = 0.75 // OR: estimated tokens exceed this fraction of the context window
	keepRecent    = 4    // messages kept verbatim after summarising
)

// maybeSummarize triggers summarisation when either threshold is
// crossed. It is best-effort: a failure is logged and history is left
// untouched, never surfaced as a turn error.
func (l *Loop) maybeSummarize(ctx context.Context, sessionKey string) {
	history := l.sessions.History(sessionKey)
	if len(history) <= keepRecent {
		return
	}

	tokenEstimate := estimateTokens(history)
	threshold := int(float64(l.contextWindow) * tokenFraction)

	if len(history) < msgThreshold && tokenEstimate <= threshold {
		return
	}

	toSummarize := history[:len(history)-keepRecent]
	summary := l.sessions.GetSummary(sessionKey)

	prompt := "Provide a concise summary of this conversation, preserving key facts, decisions, and open tasks:\n\n"
	if summary != "" {
		prompt += "Existing summary: " + summary + "\n\n"
	}
	for _, m := range toSummarize {
		switch m.Role {
		case "user":
			prompt += fmt.Sprintf("user: %s\n", m.Content)
		case "assistant":
			if m.Content != "" {
				prompt += fmt.Sprintf("assistant: %s\n", m.Content)
			}
		}
	}

	provider := l.currentProvider()
	resp, err := provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: prompt}},
		Model:    l.model,
	})
	if err != nil {
		l.log.Warn("summarisation failed, leaving history untouched", "session", sessionKey, "error", err)
		return
	}

	l.sessions.SetSummary(sessionKey, resp.Content)
	l.sessions.Truncate(sessionKey, keepRecent)
	if err := l.sessions.Save(sessionKey); err != nil {
		l.log.Warn("session persistence failed after summarisation", "session", sessionKey, "error", err)
	}
}

// estimateTokens is a rough chars/3 estimate — good enough for a
// threshold check, not for billing.
func estimateTokens(messages []providers.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 3
	}
	return total
}
