package services

import (
	"github.com/agentstation/lbmap/pkg/errors"
)

// RunningContainer asserts that a container belongs to a service and is alive.
// Many running containers may share a service name.
type RunningContainer struct {
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	ID          string `json:"id" yaml:"id"`
	IP          string `json:"ip" yaml:"ip"`
}

// Container returns the {id, ip} pair carried by the running entry.
func (r RunningContainer) Container() Container {
	return Container{ID: r.ID, IP: r.IP}
}

// LiveReport is the current truth supplied for one reconciliation pass.
// It is never mutated by lbmap.
type LiveReport struct {
	Running    []RunningContainer `json:"running" yaml:"running"`
	Candidates []CandidateService `json:"candidates" yaml:"candidates"`
}

// Report sections, as named in MalformedReportError.
const (
	SectionRunning    = "running"
	SectionCandidates = "candidates"
)

// Validate checks that every element carries the fields reconciliation keys on.
// Running entries need a service name and a container id; candidates need a
// service name and an id on each of their containers. Everything else is opaque.
func (r LiveReport) Validate() error {
	for i, rc := range r.Running {
		if rc.ServiceName == "" {
			return errors.NewMalformedReportError(SectionRunning, i, "serviceName")
		}
		if rc.ID == "" {
			return errors.NewMalformedReportError(SectionRunning, i, "id")
		}
	}
	for i, c := range r.Candidates {
		if c.Name == "" {
			return errors.NewMalformedReportError(SectionCandidates, i, "serviceName")
		}
		for _, ctr := range c.Containers {
			if ctr.ID == "" {
				return errors.NewMalformedReportError(SectionCandidates, i, "containers.id")
			}
		}
	}
	return nil
}

// RunningNames returns the set of service names present in Running.
func (r LiveReport) RunningNames() map[string]struct{} {
	names := make(map[string]struct{}, len(r.Running))
	for _, rc := range r.Running {
		names[rc.ServiceName] = struct{}{}
	}
	return names
}

// RunningIDs returns the set of container ids present in Running.
func (r LiveReport) RunningIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(r.Running))
	for _, rc := range r.Running {
		ids[rc.ID] = struct{}{}
	}
	return ids
}
