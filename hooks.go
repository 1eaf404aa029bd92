package lbmap

import (
	"sync"

	"github.com/agentstation/lbmap/pkg/differ"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

// Hooks registers callbacks for service changes.
//
// Hooks for a pass run before Reconcile returns and before the next pass on
// the client starts, so they see passes in order. A hook must not call
// Reconcile on the same client.
type Hooks interface {
	// OnServiceCreated registers a callback for services a pass creates
	OnServiceCreated(ServiceCreatedHook)

	// OnServiceUpdated registers a callback for services a pass changes
	OnServiceUpdated(ServiceUpdatedHook)

	// OnServiceRemoved registers a callback for services a pass or a delete removes
	OnServiceRemoved(ServiceRemovedHook)

	// OnReconciled registers a callback for every successful pass
	OnReconciled(ReconciledHook)
}

// Hook function types for service events
type (
	// ServiceCreatedHook is called when a service is added to a table
	ServiceCreatedHook func(table string, svc services.Service)

	// ServiceUpdatedHook is called when a stored service changes
	ServiceUpdatedHook func(table string, update differ.ServiceUpdate)

	// ServiceRemovedHook is called when a service is removed from a table
	ServiceRemovedHook func(table string, svc services.Service)

	// ReconciledHook is called after every successful pass, dry runs included
	ReconciledHook func(result *reconciler.Result)
)

// hooks manages event callbacks for table changes
type hooks struct {
	mu           sync.RWMutex
	onCreated    []ServiceCreatedHook
	onUpdated    []ServiceUpdatedHook
	onRemoved    []ServiceRemovedHook
	onReconciled []ReconciledHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnServiceCreated registers a callback for services a pass creates
func (c *client) OnServiceCreated(fn ServiceCreatedHook) {
	c.hooks.add(func(h *hooks) { h.onCreated = append(h.onCreated, fn) })
}

// OnServiceUpdated registers a callback for services a pass changes
func (c *client) OnServiceUpdated(fn ServiceUpdatedHook) {
	c.hooks.add(func(h *hooks) { h.onUpdated = append(h.onUpdated, fn) })
}

// OnServiceRemoved registers a callback for removed services
func (c *client) OnServiceRemoved(fn ServiceRemovedHook) {
	c.hooks.add(func(h *hooks) { h.onRemoved = append(h.onRemoved, fn) })
}

// OnReconciled registers a callback for every successful pass
func (c *client) OnReconciled(fn ReconciledHook) {
	c.hooks.add(func(h *hooks) { h.onReconciled = append(h.onReconciled, fn) })
}

func (h *hooks) add(register func(*hooks)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	register(h)
}

// triggerReconciled fires the per-service hooks from the pass's changeset,
// then the reconciled hooks. Dry runs change nothing, so only the latter fire.
func (h *hooks) triggerReconciled(table string, result *reconciler.Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if cs := result.Changeset; cs != nil && !result.Metadata.DryRun {
		for _, svc := range cs.Added {
			for _, hook := range h.onCreated {
				hook(table, svc)
			}
		}
		for _, update := range cs.Updated {
			for _, hook := range h.onUpdated {
				hook(table, update)
			}
		}
		for _, svc := range cs.Removed {
			for _, hook := range h.onRemoved {
				hook(table, svc)
			}
		}
	}

	for _, hook := range h.onReconciled {
		hook(result)
	}
}

func (h *hooks) triggerRemoved(table string, svc services.Service) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onRemoved {
		hook(table, svc)
	}
}
