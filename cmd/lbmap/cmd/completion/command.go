// Package completion provides the completion command group.
package completion

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/internal/cmd/completion"
	"github.com/agentstation/lbmap/internal/cmd/constants"
)

// NewCommand creates the completion command. It replaces cobra's default
// so install and uninstall live next to the generators.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		GroupID:   "management",
		Short:     "Generate, install or remove shell completions",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{constants.ShellBash, constants.ShellZsh, constants.ShellFish, constants.ShellPowerShell},
		RunE: func(cmd *cobra.Command, args []string) error {
			return completion.Generate(cmd.Root(), args[0], cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "install [bash|zsh|fish]",
		Short:     "Install completions for a shell",
		Args:      cobra.ExactArgs(1),
		ValidArgs: completion.Shells,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := completion.Install(cmd.Root(), args[0], cmd.ErrOrStderr())
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall [bash|zsh|fish]",
		Short: "Remove completions for one shell, or all with no argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shells := completion.Shells
			if len(args) == 1 {
				shells = args
			}
			for _, shell := range shells {
				if _, err := completion.Uninstall(shell, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			return nil
		},
	})

	return cmd
}
