package output

import (
	"io"
	"strconv"
	"strings"

	"github.com/agentstation/lbmap/pkg/differ"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

// ServicesToData lays out a service list. Wide tables add the container list.
func ServicesToData(table string, list []services.Service) Data {
	rows := make([][]string, 0, len(list))
	for _, svc := range list {
		mode := svc.ConfigMode.String()
		if !svc.ConfigMode.IsSet() {
			mode = "-"
		}
		cookie := svc.Cookie
		if cookie == "" {
			cookie = "-"
		}
		rows = append(rows, []string{
			svc.Name,
			mode,
			svc.Predicate,
			strconv.Itoa(len(svc.Containers)),
			cookie,
			containerList(svc.Containers),
		})
	}

	return Data{
		Title:           "Services in " + table,
		Headers:         []string{"NAME", "MODE", "PREDICATE", "CONTAINERS", "COOKIE", "ENDPOINTS"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft},
		NarrowColumns:   5,
	}
}

// ServiceToData lays out one service as property/value pairs.
func ServiceToData(svc services.Service) Data {
	rows := [][]string{
		{"Name", svc.Name},
		{"Mode", svc.ConfigMode.String()},
		{"Predicate", svc.Predicate},
		{"Sticky", strconv.FormatBool(svc.Sticky())},
	}
	if svc.Sticky() {
		rows = append(rows, []string{"Cookie", svc.Cookie})
	}
	for _, c := range svc.Containers {
		rows = append(rows, []string{"Container " + c.ID, c.IP})
	}
	return Data{
		Title:   "Service " + svc.Name,
		Headers: []string{"PROPERTY", "VALUE"},
		Rows:    rows,
	}
}

// ChangesToData lays out a changeset, one row per service touched.
func ChangesToData(changes *differ.Changeset) Data {
	var rows [][]string
	if changes != nil {
		for _, svc := range changes.Added {
			rows = append(rows, []string{"+", svc.Name, containerList(svc.Containers)})
		}
		for _, update := range changes.Updated {
			var fields []string
			for _, c := range update.Changes {
				fields = append(fields, c.Path)
			}
			rows = append(rows, []string{"~", update.Name, strings.Join(fields, ", ")})
		}
		for _, svc := range changes.Removed {
			rows = append(rows, []string{"-", svc.Name, ""})
		}
	}
	return Data{
		Title:   "Changes",
		Headers: []string{"", "SERVICE", "DETAIL"},
		Rows:    rows,
	}
}

// ResultToData summarizes a reconciliation pass.
func ResultToData(result *reconciler.Result) Data {
	stats := result.Metadata.Stats
	mode := "applied"
	if result.Metadata.DryRun {
		mode = "dry run"
	}
	return Data{
		Title:   "Reconciled " + result.Table,
		Headers: []string{"METRIC", "VALUE"},
		Rows: [][]string{
			{"Mode", mode},
			{"Services scanned", strconv.Itoa(stats.ServicesScanned)},
			{"Services deleted", strconv.Itoa(stats.ServicesDeleted)},
			{"Services updated", strconv.Itoa(stats.ServicesUpdated)},
			{"Services created", strconv.Itoa(stats.ServicesCreated)},
			{"Containers dropped", strconv.Itoa(stats.ContainersDropped)},
			{"Containers final", strconv.Itoa(stats.ContainersFinal)},
			{"Duration", result.Metadata.Duration.String()},
		},
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// WriteResult writes a pass in the requested format. Tabular formats get the
// summary followed by the changeset; the rest get the whole result.
func WriteResult(w io.Writer, format Format, result *reconciler.Result) error {
	if !IsTabular(format) {
		return NewFormatter(format).Format(w, result)
	}
	formatter := NewFormatter(format)
	if err := formatter.Format(w, ResultToData(result)); err != nil {
		return err
	}
	if result.Changeset == nil || result.Changeset.IsEmpty() {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return formatter.Format(w, ChangesToData(result.Changeset))
}

func containerList(containers []services.Container) string {
	parts := make([]string, 0, len(containers))
	for _, c := range containers {
		parts = append(parts, c.ID+"@"+c.IP)
	}
	return strings.Join(parts, " ")
}
