// Package services provides the services command group.
package services

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/cmd/application"
	"github.com/agentstation/lbmap/internal/cmd/output"
	"github.com/agentstation/lbmap/internal/matcher"
	"github.com/agentstation/lbmap/internal/server/filter"
	"github.com/agentstation/lbmap/pkg/errors"
	pkgservices "github.com/agentstation/lbmap/pkg/services"
)

// NewCommand creates the services command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"service", "svc"},
		GroupID: "management",
		Short:   "Inspect and delete stored services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("table", "t", "", "service table (default from config)")

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newGetCommand(app))
	cmd.AddCommand(newDeleteCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var (
		mode      string
		contains  string
		match     string
		container string
		limit     int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the services in a table",
		Example: `  lbmap services list --table edge
  lbmap services list --mode path --format wide
  lbmap services list --match 'api-*'
  lbmap services list --container 10.0.0.7 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _ := cmd.Flags().GetString("table")

			f := filter.ServiceFilter{
				NameContains: contains,
				Mode:         pkgservices.ConfigMode(mode),
				Container:    container,
				Sort:         filter.SortName,
				Order:        "asc",
				Limit:        limit,
			}
			if f.Mode.IsSet() && !f.Mode.IsKnown() {
				return errors.NewValidationError("mode", mode, "must be host or path")
			}
			if match != "" {
				m, err := matcher.New(matcher.Auto, match, matcher.CaseInsensitive())
				if err != nil {
					return err
				}
				f.Match = m
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			list, err := client.Services(cmd.Context(), table)
			if err != nil {
				return err
			}
			page, _ := f.Apply(list)

			format := output.Format(app.OutputFormat())
			var data any = page
			if output.IsTabular(format) {
				data = output.ServicesToData(tableName(client.DefaultTable(), table), page)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "only services with this config mode (host, path)")
	cmd.Flags().StringVar(&contains, "contains", "", "only services whose name contains this text")
	cmd.Flags().StringVar(&match, "match", "", "only services whose name matches a glob, or a /regex/")
	cmd.Flags().StringVar(&container, "container", "", "only services backed by this container id or ip")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "limit number of results (0 for all)")
	return cmd
}

func newGetCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show one service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")

			client, err := app.Client()
			if err != nil {
				return err
			}
			svc, err := client.Service(cmd.Context(), table, args[0])
			if err != nil {
				return err
			}

			format := output.Format(app.OutputFormat())
			var data any = svc
			if output.IsTabular(format) {
				data = output.ServiceToData(svc)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}

func newDeleteCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a service from a table",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")

			client, err := app.Client()
			if err != nil {
				return err
			}
			if err := client.DeleteService(cmd.Context(), table, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted service %s from %s\n", args[0], tableName(client.DefaultTable(), table))
			return nil
		},
	}
}

func tableName(fallback, table string) string {
	if table == "" {
		return fallback
	}
	return table
}
