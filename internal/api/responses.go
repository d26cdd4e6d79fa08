package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vitaliisemenov/recsa-core/internal/api/middleware"
	"github.com/vitaliisemenov/recsa-core/internal/types"
)

// maxControlBodySize bounds a control-route JSON body; these payloads are
// small id lists and records, never bulk application data.
const maxControlBodySize = 64 * 1024

// decodeJSONBody reads r.Body (bounded by maxControlBodySize) into out.
func decodeJSONBody(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxControlBodySize+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxControlBodySize {
		return fmt.Errorf("body exceeds %d bytes", maxControlBodySize)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"status":     "error",
		"message":    message,
		"request_id": middleware.GetRequestID(r.Context()),
	})
}

func intToNodeID(id int) types.NodeID { return types.NodeID(id) }
