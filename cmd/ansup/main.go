package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags holds daemon connection flags.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// RegisterFlags holds flags for the register command.
type RegisterFlags struct {
	ID      string
	Name    string
	Kind    string
	Entry   string
	WorkDir string
	Env     []string
	Enabled bool
	API     APIFlags
}

// buildRoot creates the root command with all subcommands attached.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	c := command{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createRegisterCommand(c),
		createUnregisterCommand(c),
		createStartCommand(c),
		createStopCommand(c),
		createRestartCommand(c),
		createStatusCommand(c),
		createLogsCommand(c),
		createRenameCommand(c),
		createClearLogsCommand(c),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "ansup",
		Short: "Analysis process supervision tool",
		Long: `Ansup supervises analysis scripts: it spawns them, captures their
output, restarts crashed listeners and exposes status over a REST API.

Examples:
  ansup serve --config=ansup.toml
  ansup register --name=traffic --kind=listener --entry=/opt/analyses/traffic.sh
  ansup status --id=<id>
  ansup status --api-url=http://remote:8080/api`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.Flags().StringVar(&f.URL, "api-url", "", "daemon URL (default http://127.0.0.1:8080/api)")
	cmd.Flags().DurationVar(&f.Timeout, "api-timeout", 10*time.Second, "request timeout")
}

func addIDFlag(cmd *cobra.Command, id *string) {
	cmd.Flags().StringVar(id, "id", "", "analysis id (required)")
	if err := cmd.MarkFlagRequired("id"); err != nil {
		panic(err)
	}
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the ansup daemon",
		Long: `Start the ansup daemon to supervise configured analyses.
All configuration is loaded from a TOML file.

Examples:
  ansup serve --config=ansup.toml
  ansup serve ansup.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := globalFlags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			if configPath == "" {
				return fmt.Errorf("config file required for serve command. Use --config=ansup.toml or provide as argument")
			}
			return runServe(configPath)
		},
	}
}

func createRegisterCommand(c command) *cobra.Command {
	flags := &RegisterFlags{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new analysis",
		Long: `Register a new analysis with the daemon.

Examples:
  ansup register --name=traffic --kind=listener --entry=/opt/analyses/traffic.sh
  ansup register --name=report --kind=oneshot --entry=/opt/analyses/report.sh --env=REGION=eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Register(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.ID, "id", "", "analysis id (generated when omitted)")
	cmd.Flags().StringVar(&flags.Name, "name", "", "display name")
	cmd.Flags().StringVar(&flags.Kind, "kind", "listener", "analysis kind: listener or oneshot")
	cmd.Flags().StringVar(&flags.Entry, "entry", "", "absolute path to the entry script (required)")
	cmd.Flags().StringVar(&flags.WorkDir, "work-dir", "", "working directory")
	cmd.Flags().StringArrayVar(&flags.Env, "env", nil, "extra environment KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&flags.Enabled, "enabled", false, "mark as enabled so the daemon resumes it")
	addAPIFlags(cmd, &flags.API)
	if err := cmd.MarkFlagRequired("entry"); err != nil {
		panic(err)
	}
	return cmd
}

func createUnregisterCommand(c command) *cobra.Command {
	var id string
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Unregister an analysis",
		Long:  "Remove an analysis from the daemon, stopping it first if it is running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Unregister(id, *api)
		},
	}
	addIDFlag(cmd, &id)
	addAPIFlags(cmd, api)
	return cmd
}

func createStartCommand(c command) *cobra.Command {
	var id string
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(id, *api)
		},
	}
	addIDFlag(cmd, &id)
	addAPIFlags(cmd, api)
	return cmd
}

func createStopCommand(c command) *cobra.Command {
	var id string
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop an analysis",
		Long:  "Stop a running analysis gracefully and mark it disabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(id, *api)
		},
	}
	addIDFlag(cmd, &id)
	addAPIFlags(cmd, api)
	return cmd
}

func createRestartCommand(c command) *cobra.Command {
	var id string
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart an analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(id, *api)
		},
	}
	addIDFlag(cmd, &id)
	addAPIFlags(cmd, api)
	return cmd
}

func createStatusCommand(c command) *cobra.Command {
	var id string
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show analysis status",
		Long: `Show the status of analyses managed by the daemon.

Examples:
  ansup status                # all analyses
  ansup status --id=<id>      # one analysis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(id, *api)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "analysis id (optional)")
	addAPIFlags(cmd, api)
	return cmd
}

func createLogsCommand(c command) *cobra.Command {
	var id string
	var limit int
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show captured output lines",
		Long:  "Show buffered output lines for an analysis, most recent first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logs(id, limit, *api)
		},
	}
	addIDFlag(cmd, &id)
	cmd.Flags().IntVar(&limit, "limit", 0, "max lines to return (0 = all buffered)")
	addAPIFlags(cmd, api)
	return cmd
}

func createRenameCommand(c command) *cobra.Command {
	var id, name string
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename an analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Rename(id, name, *api)
		},
	}
	addIDFlag(cmd, &id)
	cmd.Flags().StringVar(&name, "name", "", "new display name (required)")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	addAPIFlags(cmd, api)
	return cmd
}

func createClearLogsCommand(c command) *cobra.Command {
	var id string
	var truncate bool
	api := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "clear-logs",
		Short: "Clear buffered output lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ClearLogs(id, truncate, *api)
		},
	}
	addIDFlag(cmd, &id)
	cmd.Flags().BoolVar(&truncate, "truncate", false, "also remove the on-disk log file")
	addAPIFlags(cmd, api)
	return cmd
}
