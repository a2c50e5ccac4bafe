package agent

import (
	"regexp"
	"strings"
)

// Some OpenAI-compatible backends echo reasoning/thinking blocks in
// the visible content instead of a separate field; strip them before
// the text reaches a session or a channel.
var thinkingTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
}

// sanitizeAssistantContent strips echoed reasoning blocks and
// surrounding whitespace from a final assistant response before it is
// persisted or delivered.
func sanitizeAssistantContent(content string) string {
	if content == "" {
		return content
	}
	lower := strings.ToLower(content)
	if strings.Contains(lower, "<think") {
		for _, pat := range thinkingTagPatterns {
			content = pat.ReplaceAllString(content, "")
		}
	}
	return strings.TrimSpace(content)
}
