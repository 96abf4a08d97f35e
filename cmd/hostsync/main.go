// Package main is the entry point for the hostsync CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/flemzord/hostsync/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var params app.RunParams

	root := &cobra.Command{
		Use:           "hostsync",
		Short:         "Keep the managed block of the hosts file in sync with a remote host list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			params.Version = version
			params.Commit = commit
			params.Date = date
		},
	}
	root.PersistentFlags().StringVarP(&params.ConfigPath, "config", "c", "", "Path to configuration file (default: config.json next to the executable)")
	root.PersistentFlags().StringVar(&params.LogLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		versionCmd(),
		runCmd(&params),
		onceCmd(&params),
		historyCmd(&params),
		configCmd(&params),
		statusCmd(&params),
	)
	for _, action := range service.ControlAction {
		root.AddCommand(controlCmd(&params, action))
	}
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostsync %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func runCmd(params *app.RunParams) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the updater until stopped (foreground or under the service manager)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(*params)
		},
	}
}

func onceCmd(params *app.RunParams) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single update cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := app.RunOnce(cmd.Context(), *params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (run %s", rep.Outcome, rep.ID)
			if rep.BackupPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ", backup %s", rep.BackupPath)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ")")
			return nil
		},
	}
}

func historyCmd(params *app.RunParams) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent update cycles as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := app.Recent(cmd.Context(), *params, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records")
	return cmd
}

func configCmd(params *app.RunParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := *params
			if len(args) == 1 {
				p.ConfigPath = args[0]
			}
			cfg, path, err := app.LoadConfig(p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%s)\n", path)
			fmt.Fprintf(out, "  work_dir:        %s\n", cfg.WorkDir)
			fmt.Fprintf(out, "  hosts_path:      %s\n", cfg.HostsPath)
			fmt.Fprintf(out, "  backup_dir:      %s\n", cfg.BackupPath())
			fmt.Fprintf(out, "  cron_expression: %s\n", cfg.CronExpression)
			if cfg.Status.Bind != "" {
				fmt.Fprintf(out, "  status.bind:     %s\n", cfg.Status.Bind)
			}
			return nil
		},
	})
	return cmd
}

func statusCmd(params *app.RunParams) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the OS service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := app.ServiceStatus(*params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func controlCmd(params *app.RunParams, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the OS service", cases.Title(language.English).String(action)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Control(*params, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
			return nil
		},
	}
}
