package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/cmd/lbmap/cmd/completion"
	"github.com/agentstation/lbmap/cmd/lbmap/cmd/reconcile"
	"github.com/agentstation/lbmap/cmd/lbmap/cmd/render"
	"github.com/agentstation/lbmap/cmd/lbmap/cmd/serve"
	"github.com/agentstation/lbmap/cmd/lbmap/cmd/services"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(reconcile.NewCommand(a))
	rootCmd.AddCommand(render.NewCommand(a))
	rootCmd.AddCommand(serve.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(services.NewCommand(a))
	rootCmd.AddCommand(completion.NewCommand())

	rootCmd.AddCommand(a.newVersionCommand())
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("lbmap %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
