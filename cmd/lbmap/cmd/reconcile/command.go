// Package reconcile provides the reconcile command.
package reconcile

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap"
	"github.com/agentstation/lbmap/cmd/application"
	"github.com/agentstation/lbmap/internal/cmd/output"
	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/logging"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

type options struct {
	table  string
	file   string
	out    string
	dryRun bool
}

// NewCommand creates the reconcile command.
func NewCommand(app application.Application) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "core",
		Short:   "Reconcile a service table against a live report",
		Long: `Reconcile reads a live report (JSON or YAML) of running containers and
candidate services, updates the service table, and renders the resulting
load-balancer configuration.

Without --out the configuration is written to stdout. With --out it is
written atomically to the file and a summary of the pass is printed instead.
An explicit --format json|yaml prints the full result.`,
		Example: `  # Reconcile and print the HAProxy config
  lbmap reconcile --file live.json

  # Read the report from stdin and write the config atomically
  docker-report | lbmap reconcile --file - --out /etc/haproxy/haproxy.cfg

  # Preview without touching the store
  lbmap reconcile --file live.yaml --dry-run --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.table, "table", "t", "", "service table (default from config)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "live report file, or - for stdin")
	cmd.Flags().StringVar(&opts.out, "out", "", "write the rendered config to this file")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "compute and render without writing to the store")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, opts *options) error {
	live, err := readReport(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}

	var client lbmap.Client
	if opts.dryRun {
		client, err = app.ClientWithOptions(lbmap.WithDryRun(true))
	} else {
		client, err = app.Client()
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.ReconcileTimeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, app.Logger())
	ctx = logging.WithField(ctx, "report", opts.file)

	result, err := client.Reconcile(ctx, opts.table, live)
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), app, opts, result)
}

// readReport decodes the live report, sniffing the format for stdin.
func readReport(stdin io.Reader, file string) (services.LiveReport, error) {
	var (
		data   []byte
		err    error
		format string
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
		file = "stdin"
	} else {
		data, err = os.ReadFile(file) // #nosec G304 - user-supplied report path
		format = services.FormatFor(filepath.Ext(file))
	}
	if err != nil {
		return services.LiveReport{}, errors.WrapIO("read", file, err)
	}
	return services.DecodeReport(data, format, file)
}

func writeResult(w io.Writer, app application.Application, opts *options, result *reconciler.Result) error {
	format := output.Format(app.OutputFormat())

	if opts.out != "" {
		if err := WriteConfig(opts.out, result.Config); err != nil {
			return err
		}
		app.Logger().Info().Str("path", opts.out).Bool("dry_run", result.Metadata.DryRun).Msg("Config written")
		return output.WriteResult(w, format, result)
	}

	if !output.IsTabular(format) {
		return output.NewFormatter(format).Format(w, result)
	}
	_, err := io.WriteString(w, result.Config)
	return err
}

// WriteConfig atomically replaces path with the rendered configuration, so a
// load balancer watching the file never reads a partial write.
func WriteConfig(path, config string) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := atomicwriter.WriteFile(path, []byte(config), constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
