// Package differ compares service lists and reports what a reconciliation changed.
package differ

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentstation/lbmap/pkg/services"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates an item was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates an item was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates an item was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`         // Field path (e.g., "configMode", "containers")
	OldValue string     `json:"oldValue" yaml:"oldValue"` // Previous value (string representation)
	NewValue string     `json:"newValue" yaml:"newValue"` // New value (string representation)
	Type     ChangeType `json:"type" yaml:"type"`
}

// ServiceUpdate represents an update to an existing service.
type ServiceUpdate struct {
	Name              string               `json:"serviceName" yaml:"serviceName"`
	Existing          services.Service     `json:"existing" yaml:"existing"`
	New               services.Service     `json:"new" yaml:"new"`
	Changes           []FieldChange        `json:"changes" yaml:"changes"`
	AddedContainers   []services.Container `json:"addedContainers,omitempty" yaml:"addedContainers,omitempty"`
	RemovedContainers []services.Container `json:"removedContainers,omitempty" yaml:"removedContainers,omitempty"`
}

// Changeset represents all changes between two service lists.
type Changeset struct {
	Added   []services.Service `json:"added" yaml:"added"`
	Updated []ServiceUpdate    `json:"updated" yaml:"updated"`
	Removed []services.Service `json:"removed" yaml:"removed"`
	Summary ChangesetSummary   `json:"summary" yaml:"summary"`
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	Added             int `json:"added" yaml:"added"`
	Updated           int `json:"updated" yaml:"updated"`
	Removed           int `json:"removed" yaml:"removed"`
	ContainersAdded   int `json:"containersAdded" yaml:"containersAdded"`
	ContainersRemoved int `json:"containersRemoved" yaml:"containersRemoved"`
	TotalChanges      int `json:"totalChanges" yaml:"totalChanges"`
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c != nil && c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return !c.HasChanges()
}

func (c *Changeset) summarize() {
	s := ChangesetSummary{
		Added:   len(c.Added),
		Updated: len(c.Updated),
		Removed: len(c.Removed),
	}
	for _, u := range c.Updated {
		s.ContainersAdded += len(u.AddedContainers)
		s.ContainersRemoved += len(u.RemovedContainers)
	}
	s.TotalChanges = s.Added + s.Updated + s.Removed
	c.Summary = s
}

// String returns a human-readable summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	var parts []string
	if n := len(c.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(c.Updated); n > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", n))
	}
	if n := len(c.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}

	return fmt.Sprintf("Services: %s (containers +%d/-%d)",
		strings.Join(parts, ", "), c.Summary.ContainersAdded, c.Summary.ContainersRemoved)
}

// Print writes a detailed, human-readable view of the changeset to w.
func (c *Changeset) Print(w io.Writer) {
	fmt.Fprintln(w, c.String())
	if c.IsEmpty() {
		return
	}
	fmt.Fprintln(w, strings.Repeat("─", 80))

	if len(c.Added) > 0 {
		fmt.Fprintf(w, "\n➕ Added Services (%d):\n", len(c.Added))
		for _, svc := range c.Added {
			fmt.Fprintf(w, "  • %s (%d containers)\n", svc.Name, len(svc.Containers))
		}
	}

	if len(c.Updated) > 0 {
		fmt.Fprintf(w, "\n🔄 Updated Services (%d):\n", len(c.Updated))
		for _, update := range c.Updated {
			fmt.Fprintf(w, "  • %s:\n", update.Name)
			for _, change := range update.Changes {
				fmt.Fprintf(w, "    - %s: %s → %s\n", change.Path, change.OldValue, change.NewValue)
			}
		}
	}

	if len(c.Removed) > 0 {
		fmt.Fprintf(w, "\n⚠️  Removed Services (%d):\n", len(c.Removed))
		for _, svc := range c.Removed {
			fmt.Fprintf(w, "  • %s\n", svc.Name)
		}
	}
}
