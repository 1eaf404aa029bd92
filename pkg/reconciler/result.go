package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/lbmap/pkg/differ"
	"github.com/agentstation/lbmap/pkg/services"
)

// Result represents the outcome of a reconciliation pass.
type Result struct {
	Table string `json:"table" yaml:"table"`

	// Snapshot is the store contents read at the start of the pass
	Snapshot services.Snapshot `json:"snapshot" yaml:"snapshot"`

	// Intermediate partitions
	Cleanse CleanseResult `json:"cleanse" yaml:"cleanse"`
	Merge   MergeResult   `json:"merge" yaml:"merge"`

	// Services is the post-persistence service list, sorted by name
	Services []services.Service `json:"services" yaml:"services"`

	// Config is the rendered load-balancer configuration
	Config string `json:"config" yaml:"config"`

	// Changeset compares Snapshot with Services
	Changeset *differ.Changeset `json:"changeset" yaml:"changeset"`

	Metadata ResultMetadata `json:"metadata" yaml:"metadata"`
}

// ResultMetadata contains metadata about the reconciliation pass.
type ResultMetadata struct {
	StartTime time.Time     `json:"startTime" yaml:"startTime"`
	EndTime   time.Time     `json:"endTime" yaml:"endTime"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	// DryRun indicates the store was not written
	DryRun bool `json:"dryRun" yaml:"dryRun"`

	Stats ResultStatistics `json:"stats" yaml:"stats"`
}

// ResultStatistics contains counts gathered during the pass.
type ResultStatistics struct {
	ServicesScanned   int   `json:"servicesScanned" yaml:"servicesScanned"`
	ServicesDeleted   int   `json:"servicesDeleted" yaml:"servicesDeleted"`
	ServicesUpdated   int   `json:"servicesUpdated" yaml:"servicesUpdated"`
	ServicesCreated   int   `json:"servicesCreated" yaml:"servicesCreated"`
	ContainersDropped int   `json:"containersDropped" yaml:"containersDropped"` // removed by cleansing
	ContainersFinal   int   `json:"containersFinal" yaml:"containersFinal"`
	TotalTimeMs       int64 `json:"totalTimeMs" yaml:"totalTimeMs"`
}

// HasChanges returns true if the pass changed the stored services.
func (r *Result) HasChanges() bool {
	return r.Changeset.HasChanges()
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	prefix := "Reconciliation completed."
	if r.Metadata.DryRun {
		prefix = "Dry run completed."
	}
	if !r.HasChanges() {
		return fmt.Sprintf("%s Table %s: no changes detected.", prefix, r.Table)
	}
	return fmt.Sprintf("%s Table %s: %s", prefix, r.Table, r.Changeset.String())
}

// NewResult creates a result for the table with its start time set.
func NewResult(table string) *Result {
	return &Result{
		Table: table,
		Metadata: ResultMetadata{
			StartTime: time.Now().UTC(),
		},
	}
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize() {
	r.Metadata.EndTime = time.Now().UTC()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
	r.Metadata.Stats.TotalTimeMs = r.Metadata.Duration.Milliseconds()
}
