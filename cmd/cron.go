package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tinyclaw-run/tinyclaw/internal/config"
	"github.com/tinyclaw-run/tinyclaw/internal/scheduler"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(cronListCmd(), cronAddCmd(), cronRemoveCmd(), cronEnableCmd(), cronDisableCmd())
	return cmd
}

func openScheduler() *scheduler.Scheduler {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cron: failed to load config: %v\n", err)
		os.Exit(1)
	}
	sched, err := scheduler.New(cfg.Cron.Storage, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cron: failed to open job store: %v\n", err)
		os.Exit(1)
	}
	return sched
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			sched := openScheduler()
			for _, job := range sched.List() {
				status := "enabled"
				if !job.Enabled {
					status = "disabled"
				}
				fmt.Printf("%s  %-20s  %-6s  %s\n", job.ID, job.Name, status, job.Schedule.Kind)
			}
		},
	}
}

func cronAddCmd() *cobra.Command {
	var (
		name    string
		expr    string
		message string
		channel string
		chatID  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a cron-schedule job",
		Run: func(cmd *cobra.Command, args []string) {
			if expr == "" || message == "" {
				fmt.Fprintln(os.Stderr, "cron add: --expr and --message are required")
				os.Exit(1)
			}
			sched := openScheduler()
			job := &scheduler.CronJob{
				ID:      uuid.NewString(),
				Name:    name,
				Enabled: true,
				Schedule: scheduler.Schedule{
					Kind: scheduler.KindCron,
					Expr: expr,
				},
				Payload: scheduler.Payload{
					Message: message,
					Deliver: channel != "" && chatID != "",
					Channel: channel,
					ChatID:  chatID,
				},
			}
			if err := sched.Add(job); err != nil {
				fmt.Fprintf(os.Stderr, "cron add: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(job.ID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "job name")
	cmd.Flags().StringVar(&expr, "expr", "", "cron expression")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to run")
	cmd.Flags().StringVar(&channel, "channel", "", "deliver the result to this channel")
	cmd.Flags().StringVar(&chatID, "chat-id", "", "deliver the result to this chat")
	return cmd
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sched := openScheduler()
			if err := sched.Delete(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "cron remove: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func cronEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <job-id>",
		Short: "Enable a job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sched := openScheduler()
			if err := sched.Enable(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "cron enable: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func cronDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <job-id>",
		Short: "Disable a job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sched := openScheduler()
			if err := sched.Disable(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "cron disable: %v\n", err)
				os.Exit(1)
			}
		},
	}
}
