package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
	"github.com/tinyclaw-run/tinyclaw/internal/gateway"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report provider, model, workspace, and channel status",
		Run: func(cmd *cobra.Command, args []string) {
			runStatus()
		},
	}
}

func runStatus() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: failed to load config: %v\n", err)
		os.Exit(1)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: failed to build gateway: %v\n", err)
		os.Exit(1)
	}

	report := map[string]interface{}{
		"provider_configured": cfg.HasAnyProvider(),
		"channels":            gw.Channels().GetStatus(),
		"model":               cfg.Agent.Model,
		"workspace":           cfg.Agent.Workspace,
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}
