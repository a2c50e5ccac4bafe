package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
	"github.com/tinyclaw-run/tinyclaw/internal/gateway"
	"github.com/tinyclaw-run/tinyclaw/internal/sessions"
)

func agentCmd() *cobra.Command {
	var (
		message    string
		sessionKey string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run one agent turn from the command line",
		Long: `Run a single agent turn without starting the gateway's channels.

Examples:
  tinyclaw agent -m "what's on my calendar today?"
  tinyclaw agent -m "continue" -s my-session`,
		Run: func(cmd *cobra.Command, args []string) {
			runAgentOnce(message, sessionKey)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send (required)")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", "", "session key (default: cli:local)")

	return cmd
}

func runAgentOnce(message, sessionKey string) {
	setupLogging()

	if message == "" {
		fmt.Fprintln(os.Stderr, "agent: -m/--message is required")
		os.Exit(1)
	}
	if sessionKey == "" {
		sessionKey = sessions.Key("cli", "local")
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent: failed to load config: %v\n", err)
		os.Exit(1)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent: failed to build agent: %v\n", err)
		os.Exit(1)
	}

	reply, err := gw.Loop().ProcessDirect(context.Background(), message, sessionKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent: turn failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
