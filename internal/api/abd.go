package api

import (
	"encoding/json"
	"net/http"
)

// handleABDRead serves GET /abd/read. The default path is the
// linearizable two-round ABD read; ?consistency=cached serves the
// optional Redis read-through fast path instead.
func (h *Handler) handleABDRead(w http.ResponseWriter, r *http.Request) {
	var (
		value json.RawMessage
		err   error
	)
	if r.URL.Query().Get("consistency") == "cached" {
		value, err = h.res.ABD.CachedRead(r.Context())
	} else {
		value, err = h.res.ABD.Read(r.Context())
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": value})
}

// handleABDWrite serves POST /abd/write. Only the designated writer
// replica accepts writes; every other processor rejects with 403, since
// abd.Module.Write has no internal check of its own.
func (h *Handler) handleABDWrite(w http.ResponseWriter, r *http.Request) {
	if !h.res.ABD.IsWriter() {
		writeError(w, r, http.StatusForbidden, "this node is not the abd writer")
		return
	}
	var req abdWriteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	value, err := json.Marshal(req.Value)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.res.ABD.Write(r.Context(), value); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
