package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// maxDispatchBodySize bounds an inbound wire.Message; control payloads are
// small id sets and notifications, never bulk data.
const maxDispatchBodySize = 256 * 1024

// handleDispatch serves POST /internal/dispatch, the receiving end of
// every peer transport's outbound sender loop (internal/transport's
// postOnce). Grounded on webhook_handler.go's shape: method check, bounded
// body read, JSON decode, tagged dispatch, structured error response.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDispatchBodySize+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxDispatchBodySize {
		writeError(w, r, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	var msg wire.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		// Malformed inbound message: logged and dropped, never fatal
		// (spec.md §7).
		h.log.Warn("dropped malformed dispatch body", "err", err)
		writeError(w, r, http.StatusBadRequest, "malformed message")
		return
	}

	if err := h.res.DispatchMessage(r.Context(), msg); err != nil {
		h.log.Debug("dispatch failed", "type", msg.Type, "sender", msg.Sender, "err", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
