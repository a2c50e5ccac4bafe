package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible out-of-the-box values.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Workspace:           "~/.tinyclaw/workspace",
			RestrictToWorkspace: true,
			Provider:            "openai",
			Model:               "gpt-4o-mini",
			MaxTokens:           8192,
			Temperature:         0.7,
			MaxToolIterations:   20,
			ContextWindow:       200000,
		},
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            18790,
			MaxMessageChars: 32000,
			ShutdownGraceMs: 30000,
		},
		Tools: ToolsConfig{
			ExecPolicy: ExecApprovalCfg{TimeoutMs: 30000},
		},
		Sessions: SessionsConfig{
			Storage: "~/.tinyclaw/sessions",
		},
		Cron: CronConfig{
			Storage: "~/.tinyclaw/cron/jobs.json",
		},
	}
}

// Load reads a JSON5 config file, falling back to Default() when the
// file doesn't exist, then overlays TINYCLAW_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays TINYCLAW_<PATH> environment variables onto
// the config. Only leaves actually consumed by the core are wired;
// unlisted leaves are file-only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("TINYCLAW_PROVIDERS_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("TINYCLAW_PROVIDERS_OPENAI_API_BASE", &c.Providers.OpenAI.APIBase)
	envStr("TINYCLAW_PROVIDERS_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("TINYCLAW_PROVIDERS_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("TINYCLAW_PROVIDERS_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("TINYCLAW_PROVIDERS_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("TINYCLAW_PROVIDERS_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)

	envStr("TINYCLAW_AGENT_PROVIDER", &c.Agent.Provider)
	envStr("TINYCLAW_AGENT_MODEL", &c.Agent.Model)
	envStr("TINYCLAW_AGENT_WORKSPACE", &c.Agent.Workspace)

	envStr("TINYCLAW_CHANNELS_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("TINYCLAW_CHANNELS_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("TINYCLAW_CHANNELS_FEISHU_APP_ID", &c.Channels.Feishu.AppID)
	envStr("TINYCLAW_CHANNELS_FEISHU_APP_SECRET", &c.Channels.Feishu.AppSecret)
	envStr("TINYCLAW_CHANNELS_DINGTALK_CLIENT_ID", &c.Channels.DingTalk.ClientID)
	envStr("TINYCLAW_CHANNELS_DINGTALK_CLIENT_SECRET", &c.Channels.DingTalk.ClientSecret)
	envStr("TINYCLAW_CHANNELS_QQ_APP_ID", &c.Channels.QQ.AppID)
	envStr("TINYCLAW_CHANNELS_QQ_TOKEN", &c.Channels.QQ.Token)
	envStr("TINYCLAW_CHANNELS_QQ_SECRET", &c.Channels.QQ.Secret)
	envStr("TINYCLAW_CHANNELS_CAMERA_AUTH_TOKEN", &c.Channels.Camera.AuthToken)

	// A channel with credentials supplied purely via env is auto-enabled
	// — no need to also flip enabled:true in the config file.
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}
	if c.Channels.Feishu.AppID != "" && c.Channels.Feishu.AppSecret != "" {
		c.Channels.Feishu.Enabled = true
	}
	if c.Channels.DingTalk.ClientID != "" && c.Channels.DingTalk.ClientSecret != "" {
		c.Channels.DingTalk.Enabled = true
	}
	if c.Channels.QQ.AppID != "" {
		c.Channels.QQ.Enabled = true
	}

	envStr("TINYCLAW_GATEWAY_HOST", &c.Gateway.Host)
	if v := os.Getenv("TINYCLAW_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("TINYCLAW_SESSIONS_STORAGE", &c.Sessions.Storage)
	envStr("TINYCLAW_CRON_STORAGE", &c.Cron.Storage)

	if v := os.Getenv("TINYCLAW_TOOLS_WEB_BRAVE_API_KEY"); v != "" {
		c.Tools.Web.Brave.APIKey = v
		c.Tools.Web.Brave.Enabled = true
	}
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}

// WorkspacePath returns the expanded agent workspace path.
func (c *Config) WorkspacePath() string {
	return ExpandHome(c.Agent.Workspace)
}

// SessionsPath returns the expanded sessions storage directory.
func (c *Config) SessionsPath() string {
	return ExpandHome(c.Sessions.Storage)
}

// EnabledChannelNames lists channel keys with Enabled=true, for
// diagnostics and the `status` CLI subcommand.
func (c *Config) EnabledChannelNames() []string {
	var names []string
	if c.Channels.Telegram.Enabled {
		names = append(names, "telegram")
	}
	if c.Channels.Discord.Enabled {
		names = append(names, "discord")
	}
	if c.Channels.WhatsApp.Enabled {
		names = append(names, "whatsapp")
	}
	if c.Channels.Feishu.Enabled {
		names = append(names, "feishu")
	}
	if c.Channels.DingTalk.Enabled {
		names = append(names, "dingtalk")
	}
	if c.Channels.QQ.Enabled {
		names = append(names, "qq")
	}
	if c.Channels.Camera.Enabled {
		names = append(names, "camera")
	}
	return names
}
