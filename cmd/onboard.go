package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// providerEnvKeys lists the provider env vars onboard checks, in the
// order the first match wins.
var providerEnvKeys = []struct {
	provider string
	envKey   string
}{
	{"openai", "TINYCLAW_PROVIDERS_OPENAI_API_KEY"},
	{"anthropic", "TINYCLAW_PROVIDERS_ANTHROPIC_API_KEY"},
	{"openrouter", "TINYCLAW_PROVIDERS_OPENROUTER_API_KEY"},
	{"deepseek", "TINYCLAW_PROVIDERS_DEEPSEEK_API_KEY"},
	{"groq", "TINYCLAW_PROVIDERS_GROQ_API_KEY"},
	{"gemini", "TINYCLAW_PROVIDERS_GEMINI_API_KEY"},
}

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Write a starter config.json5 from environment variables",
		Long: `Non-interactive setup: detects the first TINYCLAW_PROVIDERS_*_API_KEY
environment variable set and writes a minimal config.json5 pointing at
it. Edit the generated file by hand for anything beyond the basics.`,
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("%s already exists; remove it first if you want to re-run onboard\n", cfgPath)
		return
	}

	var chosen string
	for _, p := range providerEnvKeys {
		if os.Getenv(p.envKey) != "" {
			chosen = p.provider
			break
		}
	}
	if chosen == "" {
		fmt.Println("No TINYCLAW_PROVIDERS_*_API_KEY environment variable found.")
		fmt.Println("Set one, e.g.:")
		fmt.Println(`  export TINYCLAW_PROVIDERS_OPENAI_API_KEY=sk-...`)
		fmt.Println("then re-run `tinyclaw onboard`.")
		os.Exit(1)
	}

	doc := fmt.Sprintf(`{
  "agent": {
    "workspace": "./workspace",
    "restrict_to_workspace": true,
    "provider": %q,
    "model": "",
    "max_tokens": 4096,
    "temperature": 0.7,
    "max_tool_iterations": 20,
    "context_window": 200000
  },
  "gateway": {
    "host": "127.0.0.1",
    "port": 8844
  },
  "sessions": {
    "storage": "./workspace/sessions"
  }
}
`, chosen)

	if err := os.WriteFile(cfgPath, []byte(doc), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "onboard: failed to write %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (provider: %s). Edit it, then run `tinyclaw gateway`.\n", cfgPath, chosen)
}
