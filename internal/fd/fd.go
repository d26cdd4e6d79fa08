// Package fd implements the (N, Θ) heartbeat failure detector: the sole
// oracle for liveness consumed by RecSA (spec.md §4.1).
package fd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaliisemenov/recsa-core/internal/types"
)

// BeatThreshold is the liveness threshold for the beat counters, restored
// from original_source/modules/constants.py (spec.md leaves the exact
// value informal; DESIGN.md records this as the Open Question resolution).
const BeatThreshold = 30

// FDSleep is the default tick period between heartbeat fan-outs.
const FDSleep = 250 * time.Millisecond

// TokenSender delivers a best-effort heartbeat token to a peer. Token
// delivery is fire-and-forget: errors are logged, never retried inline.
type TokenSender interface {
	SendToken(ctx context.Context, to types.NodeID) error
}

// Token is a heartbeat received from a peer. It carries no payload beyond
// the sender's identity.
type Token struct {
	Sender types.NodeID
}

// Module is one processor's failure detector.
type Module struct {
	self   types.NodeID
	n      int
	sender TokenSender
	logger *slog.Logger

	mu      sync.Mutex
	beat    []int
	monitor []int
	trusted types.Set

	inbox chan Token
}

// New constructs a failure detector for n processors, self-identified by
// id self.
func New(self types.NodeID, n int, sender TokenSender, logger *slog.Logger) *Module {
	return &Module{
		self:    self,
		n:       n,
		sender:  sender,
		logger:  logger.With("module", "fd", "node", self),
		beat:    make([]int, n),
		monitor: make([]int, n),
		trusted: types.NewSet(self),
		inbox:   make(chan Token, 64),
	}
}

// Run drives the detector loop until ctx is cancelled: it periodically
// sends a token to every peer and, on receipt of a token, updates beat and
// monitor counters and recomputes the trusted set.
func (m *Module) Run(ctx context.Context) error {
	ticker := time.NewTicker(FDSleep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case tok := <-m.inbox:
			m.uponTokenFrom(tok.Sender)
		case <-ticker.C:
			m.fanOut(ctx)
		}
	}
}

// fanOut sends a heartbeat token to every other known processor.
func (m *Module) fanOut(ctx context.Context) {
	for j := 0; j < m.n; j++ {
		peer := types.NodeID(j)
		if peer == m.self {
			continue
		}
		if err := m.sender.SendToken(ctx, peer); err != nil {
			m.logger.Debug("failed to send fd token", "peer", peer, "err", err)
		}
	}
}

// ReceiveToken enqueues a token received from a peer for processing on the
// run loop. Non-blocking: a full inbox drops the token (best-effort
// semantics, the next tick's fan-out will produce another).
func (m *Module) ReceiveToken(sender types.NodeID) {
	select {
	case m.inbox <- Token{Sender: sender}:
	default:
		m.logger.Debug("fd inbox full, dropping token", "sender", sender)
	}
}

// uponTokenFrom is the (N,Θ) monitor update macro from spec.md §4.1: reset
// the sender's beat counter, saturate its monitor counter at 3, and age
// every other peer's beat counter, recomputing trusted as everyone whose
// beat is still under BeatThreshold.
func (m *Module) uponTokenFrom(j types.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.beat[j] = 0
	m.beat[m.self] = 0
	if m.monitor[j] < 3 {
		m.monitor[j]++
	}

	next := types.NewSet(j, m.self)
	for k := 0; k < m.n; k++ {
		peer := types.NodeID(k)
		if peer == m.self || peer == j {
			continue
		}
		m.beat[k]++
		if m.beat[k] < BeatThreshold {
			next.Add(peer)
		}
	}
	m.trusted = next
}

// GetTrusted returns the current live set. i is always a member.
func (m *Module) GetTrusted() types.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trusted.Clone()
}

// ResetMonitor zeroes the monitor counter for j, used by higher layers
// when j's participation status changes.
func (m *Module) ResetMonitor(j types.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitor[j] = 0
}

// StableMonitor reports whether j's monitor counter has saturated at 3,
// i.e. at least three tokens from j have arrived since its last reset.
func (m *Module) StableMonitor(j types.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitor[j] == 3
}

// Grow extends the beat/monitor counters when the system admits new
// processors (resolver.Refresh), mirroring the original's
// `self.beat += [0]` on a new-node publish.
func (m *Module) Grow(newN int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for newN > len(m.beat) {
		m.beat = append(m.beat, 0)
		m.monitor = append(m.monitor, 0)
	}
	m.n = newN
}

// Reset zeroes beat and monitor counters (used by tests and by explicit
// re-initialization after a topology refresh).
func (m *Module) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.beat {
		m.beat[i] = 0
		m.monitor[i] = 0
	}
	m.trusted = types.NewSet(m.self)
}

// GetData exposes the module's state for the /data introspection endpoint.
func (m *Module) GetData() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	beat := append([]int(nil), m.beat...)
	monitor := append([]int(nil), m.monitor...)
	return map[string]any{
		"id":      m.self,
		"beat":    beat,
		"monitor": monitor,
		"trusted": m.trusted.Sorted(),
	}
}
