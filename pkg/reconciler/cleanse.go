package reconciler

import "github.com/agentstation/lbmap/pkg/services"

// CleanseResult partitions a persisted snapshot against live truth.
type CleanseResult struct {
	Available   []services.Service `json:"available" yaml:"available"`
	Unavailable []services.Service `json:"unavailable" yaml:"unavailable"`
}

// Cleanse splits persisted services into those still named in live.Running and
// those that are not. Available services keep only containers whose id is
// running anywhere in the report; unavailable services are returned as stored.
//
// A service left with no containers is still available. Only the absence of
// its name from live.Running marks it for deletion.
func Cleanse(persisted []services.Service, live services.LiveReport) CleanseResult {
	names := live.RunningNames()
	ids := live.RunningIDs()

	result := CleanseResult{
		Available:   make([]services.Service, 0, len(persisted)),
		Unavailable: []services.Service{},
	}

	for _, svc := range persisted {
		if _, ok := names[svc.Name]; !ok {
			result.Unavailable = append(result.Unavailable, svc.Copy())
			continue
		}

		kept := make([]services.Container, 0, len(svc.Containers))
		for _, c := range svc.Containers {
			if _, ok := ids[c.ID]; ok {
				kept = append(kept, c)
			}
		}
		svc.Containers = kept
		result.Available = append(result.Available, svc)
	}

	return result
}
