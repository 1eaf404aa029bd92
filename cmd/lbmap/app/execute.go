package app

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/internal/cmd/constants"
	"github.com/agentstation/lbmap/internal/cmd/output"
)

// Execute runs the lbmap CLI application with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "lbmap",
		Short:   "Load-balancer service reconciler",
		Version: a.version,
		Long: `lbmap reconciles a persisted table of load-balancer services against a
live report of running containers, then renders a load-balancer configuration
from the result.

Services whose containers are all gone are deleted, survivors gain the newly
reported containers, and first-time candidates are created.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "management", Title: "Management Commands:"})

	// Defaults shown in help come from the environment and config file;
	// UpdateFromFlags applies only flags the user actually set.
	cfg := a.config
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.lbmap.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", cfg.Format, "output format: "+strings.Join(constants.Formats, ", "))
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String("store", cfg.Store, "service store: memory, bolt, files")
	flags.String("store-path", cfg.StorePath, "bolt database file or files directory")
	flags.String("template", cfg.Template, "load-balancer config template (default is the embedded HAProxy template)")

	rootCmd.SetVersionTemplate("lbmap {{.Version}}\n")
	if a.in != nil {
		rootCmd.SetIn(a.in)
	}
	if a.out != nil {
		rootCmd.SetOut(a.out)
	}
	if a.errOut != nil {
		rootCmd.SetErr(a.errOut)
	}

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		path, _ := cmd.Flags().GetString("config")
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}
		a.config = config
	}
	a.config.UpdateFromFlags(cmd)

	if _, err := output.ParseFormat(a.config.Format); err != nil {
		return err
	}

	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// ExitOnError prints an error and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
