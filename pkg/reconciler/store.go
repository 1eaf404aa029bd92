package reconciler

import (
	"context"

	"github.com/agentstation/lbmap/pkg/services"
)

// Store persists services grouped into named tables. Within a table, services
// are keyed by name.
//
// What Delete and Update do with a name that is not stored is up to the
// implementation; the stores shipped with lbmap ignore such deletes and treat
// updates as upserts.
type Store interface {
	// Scan returns every service stored in the table.
	Scan(ctx context.Context, table string) ([]services.Service, error)

	// Delete removes the named service.
	Delete(ctx context.Context, table, name string) error

	// Update replaces the stored service with the same name.
	Update(ctx context.Context, table string, svc services.Service) error

	// Create inserts a batch of zero or more new services.
	Create(ctx context.Context, table string, candidates []services.CandidateService) error
}

// Renderer turns the final service list into load-balancer configuration text.
// It must not have side effects.
type Renderer interface {
	Render(ctx context.Context, list []services.Service) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, list []services.Service) (string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, list []services.Service) (string, error) {
	return f(ctx, list)
}
