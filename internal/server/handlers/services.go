package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentstation/lbmap/internal/server/filter"
	"github.com/agentstation/lbmap/internal/server/response"
)

// HandleListServices handles GET /api/v1/tables/{table}/services.
func (h *Handlers) HandleListServices(w http.ResponseWriter, r *http.Request) {
	table, ok := table(w, r)
	if !ok {
		return
	}
	f, err := filter.ParseServiceFilter(r)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}

	client, ok := h.client(w)
	if !ok {
		return
	}
	list, err := client.Services(r.Context(), table)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}

	page, total := f.Apply(list)
	response.OK(w, map[string]any{
		"table":    table,
		"services": page,
		"count":    len(page),
		"total":    total,
	})
}

// HandleGetService handles GET /api/v1/tables/{table}/services/{name}.
func (h *Handlers) HandleGetService(w http.ResponseWriter, r *http.Request) {
	table, ok := table(w, r)
	if !ok {
		return
	}
	client, ok := h.client(w)
	if !ok {
		return
	}

	svc, err := client.Service(r.Context(), table, mux.Vars(r)["name"])
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	response.OK(w, svc)
}

// HandleDeleteService handles DELETE /api/v1/tables/{table}/services/{name}.
func (h *Handlers) HandleDeleteService(w http.ResponseWriter, r *http.Request) {
	table, ok := table(w, r)
	if !ok {
		return
	}
	client, ok := h.client(w)
	if !ok {
		return
	}

	if err := client.DeleteService(r.Context(), table, mux.Vars(r)["name"]); err != nil {
		response.ErrorFromType(w, r, err)
		return
	}
	response.NoContent(w)
}
