// Package render provides the render command.
package render

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/cmd/application"
	"github.com/agentstation/lbmap/cmd/lbmap/cmd/reconcile"
	"github.com/agentstation/lbmap/pkg/logging"
)

// NewCommand creates the render command.
func NewCommand(app application.Application) *cobra.Command {
	var table, out string

	cmd := &cobra.Command{
		Use:     "render",
		GroupID: "core",
		Short:   "Render the load-balancer config for a stored table",
		Long: `Render produces the load-balancer configuration from the services
currently stored in a table, without reconciling it first.`,
		Example: `  lbmap render --table edge
  lbmap render --store bolt --store-path /var/lib/lbmap --out haproxy.cfg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			config, err := client.Render(ctx, table)
			if err != nil {
				return err
			}

			if out != "" {
				if err := reconcile.WriteConfig(out, config); err != nil {
					return err
				}
				app.Logger().Info().Str("path", out).Msg("Config written")
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), config)
			return err
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "service table (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "write the rendered config to this file")
	return cmd
}
