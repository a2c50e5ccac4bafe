package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
	"github.com/tinyclaw-run/tinyclaw/internal/gateway"
	"github.com/tinyclaw-run/tinyclaw/internal/sessions"
)

// demoScenarios are scripted prompts that exercise a representative
// slice of the tool-calling loop without requiring a live channel.
var demoScenarios = map[string]string{
	"workspace-tour": "List the files in the workspace and summarize what you find.",
	"web-search":     "Search the web for the current date and tell me what you find.",
	"memory-recall":  "What do you remember about me from our previous conversations?",
	"cron-preview":   "What scheduled jobs do you currently have, and what do they do?",
}

func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo <scenario>",
		Short: "Run a scripted agent turn to exercise the tool-calling loop",
		Long: `Runs one of a handful of canned prompts through the agent loop so you
can see tool calls happen without wiring up a real channel. Run with
no arguments to list the available scenarios.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				listDemoScenarios()
				return
			}
			runDemo(args[0])
		},
	}
	return cmd
}

func listDemoScenarios() {
	names := make([]string, 0, len(demoScenarios))
	for name := range demoScenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("available scenarios:")
	for _, name := range names {
		fmt.Printf("  %-16s %s\n", name, demoScenarios[name])
	}
}

func runDemo(scenario string) {
	setupLogging()

	prompt, ok := demoScenarios[scenario]
	if !ok {
		fmt.Fprintf(os.Stderr, "demo: unknown scenario %q\n", scenario)
		listDemoScenarios()
		os.Exit(1)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "demo: failed to load config: %v\n", err)
		os.Exit(1)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "demo: failed to build agent: %v\n", err)
		os.Exit(1)
	}

	sessionKey := sessions.Key("demo", scenario)
	fmt.Printf("> %s\n\n", prompt)
	reply, err := gw.Loop().ProcessDirect(context.Background(), prompt, sessionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "demo: turn failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
