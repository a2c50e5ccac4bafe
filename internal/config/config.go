// Package config loads TinyClaw's configuration: provider credentials,
// per-channel settings, the agent's tunables, and gateway networking —
// from a JSON5 file overlaid with TINYCLAW_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringSlice accepts both ["str", ...] and [123, ...] forms in
// JSON, since several platform sender IDs serialise as numbers.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration document: model/tokens/temperature/
// iteration tunables, workspace path, per-provider credentials,
// per-channel enable-flag+credentials+allow-list, gateway host/port.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Gateway   GatewayConfig   `json:"gateway"`
	Tools     ToolsConfig     `json:"tools"`
	Sessions  SessionsConfig  `json:"sessions"`
	Cron      CronConfig      `json:"cron,omitempty"`
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`
}

// AgentConfig is the single agent's tunables — TinyClaw runs one agent
// per process, not a multi-tenant agent list.
type AgentConfig struct {
	Workspace           string  `json:"workspace"`
	RestrictToWorkspace bool    `json:"restrict_to_workspace"`
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	MaxTokens           int     `json:"max_tokens"`
	Temperature         float64 `json:"temperature"`
	MaxToolIterations   int     `json:"max_tool_iterations"`
	ContextWindow       int     `json:"context_window"`
	CommandBlacklist    []string `json:"command_blacklist,omitempty"`
}

// ProvidersConfig maps a provider name to its credentials, one entry
// per supported OpenAI-compatible backend.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai"`
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Groq       ProviderConfig `json:"groq"`
	Gemini     ProviderConfig `json:"gemini"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base,omitempty"`
}

// HasAnyProvider reports whether at least one provider has a key set.
func (c *Config) HasAnyProvider() bool {
	p := c.Providers
	return p.OpenAI.APIKey != "" || p.Anthropic.APIKey != "" || p.OpenRouter.APIKey != "" ||
		p.DeepSeek.APIKey != "" || p.Groq.APIKey != "" || p.Gemini.APIKey != ""
}

// GatewayConfig controls the gateway's networking surface.
type GatewayConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	MaxMessageChars int    `json:"max_message_chars,omitempty"`
	ShutdownGraceMs int    `json:"shutdown_grace_ms,omitempty"` // default 30000
}

// ToolsConfig controls built-in tool availability and web search.
type ToolsConfig struct {
	Allow      []string         `json:"allow,omitempty"`
	Deny       []string         `json:"deny,omitempty"`
	Web        WebToolsConfig   `json:"web"`
	ExecPolicy ExecApprovalCfg  `json:"exec_policy,omitempty"`
}

type WebToolsConfig struct {
	Brave BraveConfig `json:"brave"`
}

type BraveConfig struct {
	Enabled    bool   `json:"enabled"`
	APIKey     string `json:"api_key"`
	MaxResults int    `json:"max_results"`
}

// ExecApprovalCfg controls the exec tool's default per-call timeout.
// A caller-supplied timeout_ms argument overrides it, capped at a
// fixed ceiling.
type ExecApprovalCfg struct {
	TimeoutMs int `json:"timeout_ms,omitempty"` // default 30000
}

// SessionsConfig controls session file storage.
type SessionsConfig struct {
	Storage string `json:"storage"`
}

// CronConfig configures the scheduler document location.
type CronConfig struct {
	Storage string `json:"storage,omitempty"`
}

// HeartbeatConfig configures the optional periodic heartbeat.
type HeartbeatConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	Every      string `json:"every,omitempty"` // Go duration string, e.g. "30m"
	NotesFile  string `json:"notes_file,omitempty"`
	Session    string `json:"session,omitempty"` // target session key; default "system:heartbeat"
}
