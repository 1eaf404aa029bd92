package reconciler

import "github.com/agentstation/lbmap/pkg/services"

// MergeResult separates services to update from services to create.
type MergeResult struct {
	Updated []services.Service          `json:"updated" yaml:"updated"`
	Created []services.CandidateService `json:"created" yaml:"created"`
}

// Merge folds live container membership into the available services.
//
// Candidates whose name is already available contribute their containers to
// that service; the rest are returned untouched in Created. Every running
// entry for an available name contributes its {id, ip}. Each merged container
// list is deduplicated. Only containers are merged: the stored configMode,
// predicate and cookie of an available service are kept.
//
// Merge assumes available was produced by Cleanse against the same report and
// does not re-check that its names match live.Running.
func Merge(available []services.Service, live services.LiveReport) MergeResult {
	known := make(map[string]struct{}, len(available))
	for _, svc := range available {
		known[svc.Name] = struct{}{}
	}

	fromCandidates := make(map[string][]services.Container)
	created := []services.CandidateService{}
	for _, candidate := range live.Candidates {
		if _, ok := known[candidate.Name]; ok {
			fromCandidates[candidate.Name] = append(fromCandidates[candidate.Name], candidate.Containers...)
			continue
		}
		created = append(created, services.CandidateService(candidate.Service()))
	}

	fromRunning := make(map[string][]services.Container)
	for _, rc := range live.Running {
		if _, ok := known[rc.ServiceName]; ok {
			fromRunning[rc.ServiceName] = append(fromRunning[rc.ServiceName], rc.Container())
		}
	}

	updated := make([]services.Service, 0, len(available))
	for _, svc := range available {
		extra := fromCandidates[svc.Name]
		running := fromRunning[svc.Name]

		merged := make([]services.Container, 0, len(svc.Containers)+len(extra)+len(running))
		merged = append(merged, svc.Containers...)
		merged = append(merged, extra...)
		merged = append(merged, running...)

		svc.Containers = Dedupe(merged)
		updated = append(updated, svc)
	}

	return MergeResult{Updated: updated, Created: created}
}
