package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
	"github.com/tinyclaw-run/tinyclaw/internal/skills"
)

func skillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Manage workspace skills",
	}
	cmd.AddCommand(skillsListCmd(), skillsShowCmd(), skillsInstallCmd(), skillsRemoveCmd())
	return cmd
}

func workspaceIndex() (*skills.Index, string) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "skills: failed to load config: %v\n", err)
		os.Exit(1)
	}
	return skills.NewIndex(cfg.Agent.Workspace), cfg.Agent.Workspace
}

func skillsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered skills",
		Run: func(cmd *cobra.Command, args []string) {
			idx, _ := workspaceIndex()
			entries := idx.List()
			if len(entries) == 0 {
				fmt.Println("no skills found")
				return
			}
			for _, e := range entries {
				fmt.Printf("%-20s %s\n", e.Name, e.Description)
			}
		},
	}
}

func skillsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a skill's SKILL.md",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, workspace := workspaceIndex()
			path := filepath.Join(workspace, "skills", args[0], skills.SkillFilename)
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skills show: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(data))
		},
	}
}

func skillsInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <source>",
		Short: "Install a skill from a source (not yet implemented)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(os.Stderr, "skills install: not implemented; copy a skill directory into <workspace>/skills/ manually")
			os.Exit(1)
		},
	}
}

func skillsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an installed skill",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, workspace := workspaceIndex()
			path := filepath.Join(workspace, "skills", args[0])
			if err := os.RemoveAll(path); err != nil {
				fmt.Fprintf(os.Stderr, "skills remove: %v\n", err)
				os.Exit(1)
			}
		},
	}
}
