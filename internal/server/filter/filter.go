// Package filter parses list query parameters and applies them to service lists.
package filter

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/agentstation/lbmap/internal/matcher"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

// Sort keys.
const (
	SortName       = "name"
	SortContainers = "containers"
)

const defaultLimit = 100

// ServiceFilter contains all possible filter criteria for services.
type ServiceFilter struct {
	// Basic filters
	Name         string
	NameContains string
	Match        *matcher.Matcher // glob, or /regex/, on the name
	Mode         services.ConfigMode
	Sticky       *bool

	// Container filters
	Container     string // container id or ip
	MinContainers int
	MaxContainers int // 0 means unbounded

	// Pagination
	Sort   string
	Order  string
	Limit  int
	Offset int
}

// ParseServiceFilter extracts filter parameters from an HTTP request.
// Malformed values are rejected rather than ignored.
func ParseServiceFilter(r *http.Request) (ServiceFilter, error) {
	q := r.URL.Query()

	f := ServiceFilter{
		Name:         q.Get("name"),
		NameContains: q.Get("name_contains"),
		Mode:         services.ConfigMode(q.Get("mode")),
		Container:    q.Get("container"),
		Sort:         cmp.Or(q.Get("sort"), SortName),
		Order:        cmp.Or(q.Get("order"), "asc"),
		Limit:        defaultLimit,
	}

	if f.Mode.IsSet() && !f.Mode.IsKnown() {
		return f, errors.NewValidationError("mode", f.Mode, "must be host or path")
	}
	if pattern := q.Get("match"); pattern != "" {
		m, err := matcher.New(matcher.Auto, pattern, matcher.CaseInsensitive())
		if err != nil {
			return f, err
		}
		f.Match = m
	}
	if f.Sort != SortName && f.Sort != SortContainers {
		return f, errors.NewValidationError("sort", f.Sort, "must be name or containers")
	}
	if f.Order != "asc" && f.Order != "desc" {
		return f, errors.NewValidationError("order", f.Order, "must be asc or desc")
	}

	if v := q.Get("sticky"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.NewValidationError("sticky", v, "must be a boolean")
		}
		f.Sticky = &b
	}

	for _, p := range []struct {
		key string
		dst *int
	}{
		{"min_containers", &f.MinContainers},
		{"max_containers", &f.MaxContainers},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.NewValidationError(p.key, v, "must be a non-negative integer")
		}
		*p.dst = n
	}

	return f, nil
}

// Apply filters, sorts and paginates list. It returns the page and the
// number of matches before pagination.
func (f ServiceFilter) Apply(list []services.Service) ([]services.Service, int) {
	results := make([]services.Service, 0, len(list))
	for _, svc := range list {
		if f.matches(svc) {
			results = append(results, svc)
		}
	}

	f.sort(results)
	total := len(results)

	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return results[start:end], total
}

func (f ServiceFilter) matches(svc services.Service) bool {
	return f.matchesBasicFilters(svc) && f.matchesContainerFilters(svc)
}

// matchesBasicFilters checks name, mode and stickiness.
func (f ServiceFilter) matchesBasicFilters(svc services.Service) bool {
	if f.Name != "" && svc.Name != f.Name {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(svc.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if f.Match != nil && !f.Match.Match(svc.Name) {
		return false
	}
	if f.Mode.IsSet() {
		mode := svc.ConfigMode
		if !mode.IsSet() {
			mode = services.ConfigModeHost
		}
		if mode != f.Mode {
			return false
		}
	}
	if f.Sticky != nil && svc.Sticky() != *f.Sticky {
		return false
	}
	return true
}

// matchesContainerFilters checks container membership and count bounds.
func (f ServiceFilter) matchesContainerFilters(svc services.Service) bool {
	n := len(svc.Containers)
	if n < f.MinContainers {
		return false
	}
	if f.MaxContainers > 0 && n > f.MaxContainers {
		return false
	}
	if f.Container != "" && !slices.ContainsFunc(svc.Containers, func(c services.Container) bool {
		return c.ID == f.Container || c.IP == f.Container
	}) {
		return false
	}
	return true
}

func (f ServiceFilter) sort(list []services.Service) {
	slices.SortStableFunc(list, func(a, b services.Service) int {
		var c int
		if f.Sort == SortContainers {
			c = cmp.Compare(len(a.Containers), len(b.Containers))
		}
		c = cmp.Or(c, cmp.Compare(a.Name, b.Name))
		if f.Order == "desc" {
			return -c
		}
		return c
	})
}
