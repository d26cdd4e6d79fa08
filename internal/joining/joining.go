// Package joining implements the Joining Mechanism: the majority-consent
// admission protocol that lets a non-participant processor enter the
// current configuration (spec.md §4.4).
package joining

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// RunSleep is the period between main-loop iterations.
const RunSleep = 1 * time.Second

// ConfigurationView is the slice of RecSA the Joining Mechanism consumes.
type ConfigurationView interface {
	GetConfig() types.ConfigValue
	AllowReco() bool
	Participate()
	FDPart() types.Set
	Trusted() types.Set
}

// Transport delivers a join request or response to a peer.
type Transport interface {
	SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error
}

// ApplicationState is the opaque state a responder attaches to its
// response, from which a joiner bootstraps once admitted.
type ApplicationState = wire.JoinResponse

// PassQuery decides whether this processor consents to admit a requester.
// Pluggable; DefaultPassQuery always consents (spec.md §4.4).
type PassQuery func(requester types.NodeID) bool

// DefaultPassQuery always returns true.
func DefaultPassQuery(types.NodeID) bool { return true }

// Module is one processor's Joining Mechanism state.
type Module struct {
	self      types.NodeID
	n         int
	recsa     ConfigurationView
	tr        Transport
	log       *slog.Logger
	passQuery PassQuery

	onAdmit func(collected map[types.NodeID]wire.JoinResponse)

	mu    sync.Mutex
	pass  map[types.NodeID]bool
	state map[types.NodeID]wire.JoinResponse
}

// New constructs a Joining Mechanism module. onAdmit, if non-nil, receives
// the collected per-peer responses once Participate() fires, so the
// application layer can bootstrap its own state from them.
func New(self types.NodeID, n int, recsa ConfigurationView, tr Transport, logger *slog.Logger, passQuery PassQuery, onAdmit func(map[types.NodeID]wire.JoinResponse)) *Module {
	if passQuery == nil {
		passQuery = DefaultPassQuery
	}
	return &Module{
		self:      self,
		n:         n,
		recsa:     recsa,
		tr:        tr,
		log:       logger.With("module", "joining", "node", self),
		passQuery: passQuery,
		onAdmit:   onAdmit,
		pass:      make(map[types.NodeID]bool),
		state:     make(map[types.NodeID]wire.JoinResponse),
	}
}

// Run drives the main loop until ctx is cancelled. Per spec.md §4.4, this
// module is only meaningful while i ∉ fd_part_i; the tick is a no-op once
// this processor has become a participant.
func (m *Module) Run(ctx context.Context) error {
	ticker := time.NewTicker(RunSleep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Module) tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recsa.FDPart().Contains(m.self) {
		return
	}

	cur := configSet(m.recsa.GetConfig())
	trusted := m.recsa.Trusted()

	passCount := 0
	for id := range cur {
		if trusted.Contains(id) && m.pass[id] {
			passCount++
		}
	}

	if m.recsa.AllowReco() && len(cur) > 0 && passCount > len(cur)/2 {
		if m.onAdmit != nil {
			collected := make(map[types.NodeID]wire.JoinResponse, len(cur))
			for id := range cur {
				if resp, ok := m.state[id]; ok {
					collected[id] = resp
				}
			}
			m.onAdmit(collected)
		}
		m.recsa.Participate()
	}

	for id := range cur {
		m.sendJoinRequest(ctx, id)
	}

	if !m.recsa.AllowReco() {
		m.pass = make(map[types.NodeID]bool)
		m.state = make(map[types.NodeID]wire.JoinResponse)
	}
}

// configSet treats BOTTOM/NOT_PARTICIPANT as the empty set (spec.md §4.4
// step 1).
func configSet(v types.ConfigValue) types.Set {
	if v.Kind == types.Real {
		return v.Set
	}
	return types.NewSet()
}

func (m *Module) sendJoinRequest(ctx context.Context, to types.NodeID) {
	msg, err := wire.Encode(wire.JoiningMechanismMessage, m.self, wire.JoinRequest{Join: true})
	if err != nil {
		m.log.Error("encode join request", "to", to, "err", err)
		return
	}
	if err := m.tr.SendToNode(ctx, to, msg); err != nil {
		m.log.Debug("send join request failed", "to", to, "err", err)
	}
}

// ReceiveResponse absorbs a responder's {pass, state} reply.
func (m *Module) ReceiveResponse(sender types.NodeID, resp wire.JoinResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pass[sender] = resp.Pass
	m.state[sender] = resp
}

// ReceiveJoinRequest answers a join request from sender. A response is
// sent only if sender is not already a participant, sender is trusted,
// this processor is itself a current member of cur, and recsa.AllowReco
// holds (spec.md §4.4).
func (m *Module) ReceiveJoinRequest(ctx context.Context, sender types.NodeID, localState wire.JoinResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := configSet(m.recsa.GetConfig())
	if !cur.Contains(m.self) {
		return
	}
	if !m.recsa.Trusted().Contains(sender) {
		return
	}
	if m.recsa.FDPart().Contains(sender) {
		return
	}
	if !m.recsa.AllowReco() {
		return
	}

	resp := wire.JoinResponse{Pass: m.passQuery(sender), State: localState.State}
	msg, err := wire.Encode(wire.JoiningMechanismMessage, m.self, resp)
	if err != nil {
		m.log.Error("encode join response", "to", sender, "err", err)
		return
	}
	if err := m.tr.SendToNode(ctx, sender, msg); err != nil {
		m.log.Debug("send join response failed", "to", sender, "err", err)
	}
}

// GetData exposes the module's state for the /data introspection endpoint.
func (m *Module) GetData() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	passCopy := make(map[types.NodeID]bool, len(m.pass))
	for k, v := range m.pass {
		passCopy[k] = v
	}
	return map[string]any{
		"pass": passCopy,
	}
}
