package sessions

import "strings"

// Key builds the canonical session key "{channelName}:{chatId}" used
// throughout the core. This is the spec's simpler single-agent scheme —
// there is no "agent:{agentId}:" prefix since one process runs one
// agent; there is no multi-agent routing in scope.
func Key(channel, chatID string) string {
	return channel + ":" + chatID
}

// CronKey builds the dedicated session key used for a scheduler-driven
// run that has no channel/chatId (payload.deliver == false, or the job
// itself carries no destination).
func CronKey(jobID string) string {
	return "cron:" + jobID
}

// SubagentKey builds the session key for a spawned sub-agent task; each
// spawn gets a fresh, never-reused session.
func SubagentKey(id string) string {
	return "subagent:" + id
}

// Split parses a "{channel}:{chatId}" key back into its parts. ok is
// false for keys that don't contain a separator (e.g. "cron:jobId" is
// split into channel="cron", chatId="jobId" just like any other key —
// callers that care about the distinction check the channel name).
func Split(key string) (channel, chatID string, ok bool) {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
