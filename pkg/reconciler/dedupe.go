package reconciler

import "github.com/agentstation/lbmap/pkg/services"

// containerKey is the composite identity of a container record. Being a
// struct, ("ab", "c") and ("a", "bc") stay distinct.
type containerKey struct {
	id string
	ip string
}

// Dedupe collapses containers whose id and ip both match. The last record
// seen for a key wins; output follows the order in which keys first appeared.
func Dedupe(containers []services.Container) []services.Container {
	return dedupe(containers, func(c services.Container) containerKey {
		return containerKey{id: c.ID, ip: c.IP}
	})
}

func dedupe[T any, K comparable](items []T, key func(T) K) []T {
	if items == nil {
		return nil
	}

	index := make(map[K]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			out[i] = item
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}
	return out
}
