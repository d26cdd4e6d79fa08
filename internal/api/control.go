package api

import (
	"net/http"

	"github.com/vitaliisemenov/recsa-core/internal/byzantine"
	"github.com/vitaliisemenov/recsa-core/internal/types"
)

// handlePublishNode serves POST /publish_node: a joining peer announces
// its address, which this processor appends to the hosts file (when the
// request's append_to_file is true) and folds into the in-memory topology.
func (h *Handler) handlePublishNode(w http.ResponseWriter, r *http.Request) {
	var req publishNodeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.res.PublishNode(req.record(), req.AppendToFile); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInjectConf serves POST /inject_conf: a test-only hook that forces
// config[self] to the posted value, bypassing allow_reco entirely.
func (h *Handler) handleInjectConf(w http.ResponseWriter, r *http.Request) {
	var v types.ConfigValue
	if err := decodeJSONBody(r, &v); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.res.InjectConf(v)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInjectPrp serves POST /inject_prp: a test-only hook that forces
// prp[self] to the posted notification.
func (h *Handler) handleInjectPrp(w http.ResponseWriter, r *http.Request) {
	var n types.Notification
	if err := decodeJSONBody(r, &n); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.res.InjectPrp(n)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleKill serves POST /kill: requests process self-termination.
func (h *Handler) handleKill(w http.ResponseWriter, r *http.Request) {
	h.res.Kill()
	writeJSON(w, http.StatusOK, map[string]string{"status": "killing"})
}

// handleSetByzBehavior serves POST /set-byz-behavior: switches this
// processor's outbound transport test-mode behaviour (spec.md §1's
// Non-goal — never consulted by any safety predicate).
func (h *Handler) handleSetByzBehavior(w http.ResponseWriter, r *http.Request) {
	var req setByzBehaviorRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	behavior := byzantine.Behavior(req.Behavior)
	if !h.res.Byz().Set(behavior) {
		writeError(w, r, http.StatusBadRequest, "unknown behavior "+req.Behavior)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "behavior": string(behavior)})
}

// handleListByzBehaviors serves GET /byz-behaviors: the recognised
// behaviour names.
func (h *Handler) handleListByzBehaviors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"behaviors": byzantine.All})
}
