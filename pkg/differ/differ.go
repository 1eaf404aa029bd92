package differ

import (
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/agentstation/lbmap/pkg/services"
)

// Differ handles change detection between service lists.
type Differ interface {
	// Services compares two service lists keyed by service name.
	Services(existing, updated []services.Service) *Changeset
}

type differ struct {
	ignoreFields map[string]bool
}

// New creates a Differ.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Services compares two service lists with the default Differ.
func Services(existing, updated []services.Service) *Changeset {
	return New().Services(existing, updated)
}

// containerSet compares container lists ignoring order.
var containerSet = cmp.Options{
	cmpopts.EquateEmpty(),
	cmpopts.SortSlices(func(a, b services.Container) bool {
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.IP < b.IP
	}),
}

// Services compares two service lists and returns changes.
func (diff *differ) Services(existing, updated []services.Service) *Changeset {
	changeset := &Changeset{
		Added:   []services.Service{},
		Updated: []ServiceUpdate{},
		Removed: []services.Service{},
	}

	existingMap := make(map[string]services.Service, len(existing))
	for _, svc := range existing {
		existingMap[svc.Name] = svc
	}
	updatedMap := make(map[string]services.Service, len(updated))
	for _, svc := range updated {
		updatedMap[svc.Name] = svc
	}

	for _, svc := range updated {
		if old, ok := existingMap[svc.Name]; ok {
			if update := diff.service(old, svc); update != nil {
				changeset.Updated = append(changeset.Updated, *update)
			}
			continue
		}
		changeset.Added = append(changeset.Added, svc)
	}

	for _, svc := range existing {
		if _, ok := updatedMap[svc.Name]; !ok {
			changeset.Removed = append(changeset.Removed, svc)
		}
	}

	sortChangeset(changeset)
	changeset.summarize()

	return changeset
}

// service returns nil when the two versions are equivalent.
func (diff *differ) service(existing, updated services.Service) *ServiceUpdate {
	var changes []FieldChange

	compare := func(path, oldValue, newValue string) {
		if diff.ignoreFields[path] || oldValue == newValue {
			return
		}
		changes = append(changes, FieldChange{
			Path:     path,
			OldValue: oldValue,
			NewValue: newValue,
			Type:     changeType(oldValue, newValue),
		})
	}

	compare("configMode", string(existing.ConfigMode), string(updated.ConfigMode))
	compare("predicate", existing.Predicate, updated.Predicate)
	compare("cookie", existing.Cookie, updated.Cookie)

	var added, removed []services.Container
	if !diff.ignoreFields["containers"] && !cmp.Equal(existing.Containers, updated.Containers, containerSet) {
		added = containerDifference(updated.Containers, existing.Containers)
		removed = containerDifference(existing.Containers, updated.Containers)
		changes = append(changes, FieldChange{
			Path:     "containers",
			OldValue: containerString(existing.Containers),
			NewValue: containerString(updated.Containers),
			Type:     ChangeTypeUpdate,
		})
	}

	if len(changes) == 0 {
		return nil
	}

	return &ServiceUpdate{
		Name:              updated.Name,
		Existing:          existing,
		New:               updated,
		Changes:           changes,
		AddedContainers:   added,
		RemovedContainers: removed,
	}
}

func changeType(oldValue, newValue string) ChangeType {
	switch {
	case oldValue == "":
		return ChangeTypeAdd
	case newValue == "":
		return ChangeTypeRemove
	default:
		return ChangeTypeUpdate
	}
}

// containerDifference returns the containers in a that are not in b.
func containerDifference(a, b []services.Container) []services.Container {
	seen := make(map[services.Container]struct{}, len(b))
	for _, c := range b {
		seen[c] = struct{}{}
	}
	var out []services.Container
	for _, c := range a {
		if _, ok := seen[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func containerString(containers []services.Container) string {
	parts := make([]string, len(containers))
	for i, c := range containers {
		parts[i] = c.ID + "@" + c.IP
	}
	sort.Strings(parts)
	return "[" + strings.Join(parts, " ") + "]"
}

func sortChangeset(c *Changeset) {
	services.SortByName(c.Added)
	services.SortByName(c.Removed)
	sort.Slice(c.Updated, func(i, j int) bool {
		return c.Updated[i].Name < c.Updated[j].Name
	})
}
