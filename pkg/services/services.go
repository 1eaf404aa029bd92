// Package services defines the records lbmap reconciles: persisted services,
// their backend containers, and the live report describing what is running now.
package services

import (
	"slices"
	"strings"
)

// ConfigMode selects how a load-balancer frontend routes to a service.
type ConfigMode string

// Config modes.
const (
	ConfigModeHost ConfigMode = "host" // route on the Host header
	ConfigModePath ConfigMode = "path" // route on a URL path prefix
)

// String returns the string representation of the config mode.
func (m ConfigMode) String() string {
	return string(m)
}

// IsSet reports whether the mode was provided. An empty mode is left alone here;
// renderers decide what it means.
func (m ConfigMode) IsSet() bool {
	return m != ""
}

// IsKnown reports whether the mode is one of the defined modes.
func (m ConfigMode) IsKnown() bool {
	return m == ConfigModeHost || m == ConfigModePath
}

// Container is a single backend instance of a service.
type Container struct {
	ID string `json:"id" yaml:"id"` // Unique within a service
	IP string `json:"ip" yaml:"ip"`
}

// Service is a persisted load-balancer service. Name is its only identity and
// is never regenerated.
type Service struct {
	Name       string      `json:"serviceName" yaml:"serviceName"`
	ConfigMode ConfigMode  `json:"configMode" yaml:"configMode"`
	Predicate  string      `json:"predicate" yaml:"predicate"`               // Host name or path prefix, opaque to lbmap
	Cookie     string      `json:"cookie,omitempty" yaml:"cookie,omitempty"` // Sticky-session cookie; empty disables stickiness
	Containers []Container `json:"containers" yaml:"containers"`
}

// Sticky reports whether the service pins clients to a container by cookie.
func (s Service) Sticky() bool {
	return s.Cookie != ""
}

// ContainerIDs returns the IDs of the service's containers in list order.
func (s Service) ContainerIDs() []string {
	ids := make([]string, len(s.Containers))
	for i, c := range s.Containers {
		ids[i] = c.ID
	}
	return ids
}

// Copy returns a deep copy of the service.
func (s Service) Copy() Service {
	s.Containers = CopyContainers(s.Containers)
	return s
}

// CopyContainers returns a copy of the container list. A nil list stays nil.
func CopyContainers(containers []Container) []Container {
	if containers == nil {
		return nil
	}
	return slices.Clone(containers)
}

// CopyServices returns a deep copy of a service list.
func CopyServices(list []Service) []Service {
	if list == nil {
		return nil
	}
	out := make([]Service, len(list))
	for i, s := range list {
		out[i] = s.Copy()
	}
	return out
}

// SortByName sorts services by name in place.
func SortByName(list []Service) {
	slices.SortFunc(list, func(a, b Service) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Names returns the names of the given services in list order.
func Names(list []Service) []string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	return names
}

// Find returns the service with the given name.
func Find(list []Service, name string) (Service, bool) {
	for _, s := range list {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// CandidateService is a service the live side believes exists. It may or may
// not already be persisted.
type CandidateService Service

// Service converts the candidate to a Service.
func (c CandidateService) Service() Service {
	return Service(c).Copy()
}

// Snapshot is every service persisted in a table, read once per pass.
type Snapshot []Service
