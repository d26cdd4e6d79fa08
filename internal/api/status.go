package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleStatus serves GET / — {status, service, id}, the payload
// boot.go's peer poll consults to decide whether a peer is still
// BOOTING.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  h.res.Status().String(),
		"service": h.res.ServiceName(),
		"id":      int(h.res.Self()),
	})
}

// handleData serves GET /data — the full per-module snapshot.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.res.GetData())
}

// handleNodes serves GET /nodes — the current hosts-file membership.
func (h *Handler) handleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.res.Nodes())
}

// moduleKeys maps the /view/{module} path segment onto GetData's keys,
// accepting the "jm" shorthand original_source/api/routes.py uses for the
// Joining Mechanism alongside the full name.
var moduleKeys = map[string]string{
	"recsa":   "recsa",
	"recma":   "recma",
	"jm":      "joining",
	"joining": "joining",
	"fd":      "fd",
	"abd":     "abd",
}

// handleView serves GET /view/{module} — one module's slice of GetData,
// the supplemental route original_source/api/routes.py's render_global_view
// exposes per-module but the distillation's route table omitted.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["module"]
	key, ok := moduleKeys[name]
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown module "+name)
		return
	}
	data := h.res.GetData()
	writeJSON(w, http.StatusOK, map[string]interface{}{key: data[key]})
}
