// Package events provides an in-process pub/sub bus so the /ws/data
// route can push snapshot updates to connected dashboards without
// polling.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single snapshot-update notification broadcast to every
// subscriber.
type Event struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Sequence  int64                  `json:"sequence"`
}

// Event type constants.
const (
	TypeConfigChanged  = "config_changed"
	TypePhaseAdvanced  = "phase_advanced"
	TypeStaleInfoReset = "stale_info_reset"
	TypeNodeJoined     = "node_joined"
	TypeSystemStatus   = "system_status"
)

// Event source constants.
const (
	SourceRecSA    = "recsa"
	SourceRecMA    = "recma"
	SourceJoining  = "joining"
	SourceResolver = "resolver"
)

// New constructs an Event; Sequence is assigned by the bus on Publish.
func New(eventType string, data map[string]interface{}, source string) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}
}
