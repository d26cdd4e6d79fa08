package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vitaliisemenov/recsa-core/internal/events"
	"github.com/vitaliisemenov/recsa-core/internal/hosts"
	"github.com/vitaliisemenov/recsa-core/internal/types"
)

// pollInterval is the period between successive boot-poll rounds.
const pollInterval = 500 * time.Millisecond

type statusPayload struct {
	Status string `json:"status"`
}

// pollPeers polls every known peer's GET / until none report BOOTING,
// then transitions this processor to Running (spec.md §4.5).
func (r *Resolver) pollPeers(ctx context.Context) {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if r.allPeersBooted(ctx, client) {
			r.mu.Lock()
			r.status = Running
			r.mu.Unlock()
			close(r.runningCh)
			r.log.Info("all peers booted, entering RUNNING")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Resolver) allPeersBooted(ctx context.Context, client *http.Client) bool {
	for id, rec := range r.Nodes() {
		if id == r.self {
			continue
		}
		if r.peerStatus(ctx, client, rec) == Booting.String() {
			return false
		}
	}
	return true
}

func (r *Resolver) peerStatus(ctx context.Context, client *http.Client, rec hosts.Record) string {
	url := fmt.Sprintf("http://%s:%d/", rec.IP, rec.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Booting.String()
	}
	resp, err := client.Do(req)
	if err != nil {
		// Unreachable peers are treated as still booting; the poll loop
		// simply tries again next round.
		return Booting.String()
	}
	defer resp.Body.Close()
	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Booting.String()
	}
	return payload.Status
}

// Refresh admits a newly published node into the topology: it grows n,
// extends the failure detector's counters, and wires the peer into the
// transport's address book so subsequent sends reach it.
func (r *Resolver) Refresh(rec hosts.Record) {
	r.mu.Lock()
	r.nodes[rec.ID] = rec
	newN := r.n
	if int(rec.ID)+1 > newN {
		newN = int(rec.ID) + 1
	}
	r.n = newN
	r.mu.Unlock()

	r.FD.Grow(newN)
	r.tr.Update(context.Background(), map[types.NodeID]hosts.Record{rec.ID: rec})
	r.publish(events.TypeConfigChanged, map[string]interface{}{"refreshed_node": int(rec.ID)}, events.SourceResolver)
}

// PublishNode appends rec to the hosts file when appendToFile is set (the
// caller decides; this method does not check which processor owns the
// file, spec.md §5's shared-resource policy) and refreshes the in-memory
// topology either way.
func (r *Resolver) PublishNode(rec hosts.Record, appendToFile bool) error {
	if appendToFile {
		if err := hosts.AppendNode(r.cfg.Node.HostsPath, rec); err != nil {
			return fmt.Errorf("resolver: publish node: %w", err)
		}
	}
	r.Refresh(rec)
	return nil
}

func (r *Resolver) publish(eventType string, data map[string]interface{}, source string) {
	if err := r.bus.Publish(events.New(eventType, data, source)); err != nil {
		r.log.Debug("event publish dropped", "type", eventType, "err", err)
	}
}
