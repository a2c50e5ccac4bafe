package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Port != 18790 {
		t.Fatalf("expected default port 18790, got %d", cfg.Gateway.Port)
	}
}

func TestLoadParsesJSON5AndAllowsEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	// JSON5: trailing comma + comment, to confirm json5 (not strict JSON) is used.
	body := "{\n  // a comment\n  \"gateway\": {\"host\": \"127.0.0.1\", \"port\": 9999,},\n}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TINYCLAW_GATEWAY_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Fatalf("expected host from file, got %q", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 7777 {
		t.Fatalf("expected env override to win, got %d", cfg.Gateway.Port)
	}
}

func TestEnvOverrideAutoEnablesChannelWithCredentials(t *testing.T) {
	t.Setenv("TINYCLAW_CHANNELS_TELEGRAM_TOKEN", "abc123")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Fatal("expected telegram to be auto-enabled once a token is present")
	}
}

func TestFlexibleStringSliceAcceptsStringsAndNumbers(t *testing.T) {
	var f FlexibleStringSlice
	if err := f.UnmarshalJSON([]byte(`["a", 123, "b"]`)); err != nil {
		t.Fatal(err)
	}
	if len(f) != 3 || f[0] != "a" || f[1] != "123" || f[2] != "b" {
		t.Fatalf("got %+v", f)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/.tinyclaw/workspace"); got != home+"/.tinyclaw/workspace" {
		t.Fatalf("got %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("got %q", got)
	}
}
