package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/agentstation/lbmap/internal/server/events"
	"github.com/agentstation/lbmap/internal/server/response"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/logging"
	"github.com/agentstation/lbmap/pkg/services"
)

// ReconcileRequest is the body of POST /api/v1/reconcile.
type ReconcileRequest struct {
	Table string              `json:"table" yaml:"table"`
	Live  services.LiveReport `json:"live" yaml:"live"`
}

// HandleReconcile handles POST /api/v1/reconcile.
//
// The body may be JSON or YAML (by Content-Type). The response is the
// rendered configuration as text/plain, or the full result when the client
// accepts application/json.
func (h *Handlers) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	client, ok := h.client(w)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			response.RequestTooLarge(w, err.Error())
			return
		}
		response.BadRequest(w, "Cannot read request body", err.Error())
		return
	}

	var req ReconcileRequest
	if err := services.Decode(body, services.FormatFor(r.Header.Get("Content-Type")), "request body", &req); err != nil {
		response.ErrorFromType(w, r, err)
		return
	}

	if req.Table == "" {
		req.Table = r.URL.Query().Get("table")
	}
	if req.Table == "" {
		req.Table = client.DefaultTable()
	}

	ctx := logging.WithTable(r.Context(), req.Table)
	result, err := client.Reconcile(ctx, req.Table, req.Live)
	if err != nil {
		h.metrics.ObserveFailure(req.Table)
		h.broker.Publish(events.ReconcileFailed, req.Table, map[string]any{
			"error": err.Error(),
		})
		response.ErrorFromType(w, r.WithContext(ctx), err)
		return
	}

	if wantsJSON(r) {
		response.OK(w, result)
		return
	}
	response.Text(w, result.Config)
}

// HandleConfig handles GET /api/v1/tables/{table}/config. The rendered
// configuration is cached until the next pass or delete on the table.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	table, ok := table(w, r)
	if !ok {
		return
	}

	if config, hit := h.cache.Config(table); hit {
		w.Header().Set("X-Cache", "HIT")
		response.Text(w, config)
		return
	}

	client, ok := h.client(w)
	if !ok {
		return
	}
	gen := h.cache.Generation(table)
	config, err := client.Render(r.Context(), table)
	if err != nil {
		response.ErrorFromType(w, r, err)
		return
	}

	h.cache.FillConfig(table, gen, config)
	w.Header().Set("X-Cache", "MISS")
	response.Text(w, config)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
