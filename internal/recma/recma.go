// Package recma implements Reconfiguration Management: the predicate
// engine deciding when and what RecSA should reconfigure to (spec.md
// §4.3).
package recma

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

// ConfigurationView is the slice of RecSA that RecMA consumes.
type ConfigurationView interface {
	GetConfig() types.ConfigValue
	AllowReco() bool
	Estab(s types.Set)
	FDPart() types.Set
	Trusted() types.Set
	FDPartOf(j types.NodeID) types.Set
}

// Transport delivers a RecMA echo message to a peer.
type Transport interface {
	SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error
}

// Module is one processor's RecMA predicate engine.
type Module struct {
	self  types.NodeID
	n     int
	recsa ConfigurationView
	tr    Transport
	log   *slog.Logger

	quorumSize int

	mu         sync.Mutex
	needReconf map[types.NodeID]bool
	noMaj      map[types.NodeID]bool
	prevConfig types.ConfigValue
}

// New constructs a RecMA module for n processors. quorumSize, when 0,
// defaults to (n+1)/2 rounded up, i.e. (n+2)/2 in integer arithmetic
// (original_source/modules/recma/module.py's
// `quorum_size = (number_of_nodes + 1) / 2`, a float division there).
func New(self types.NodeID, n int, recsa ConfigurationView, tr Transport, logger *slog.Logger, quorumSize int) *Module {
	if quorumSize == 0 {
		quorumSize = (n + 2) / 2
	}
	return &Module{
		self:       self,
		n:          n,
		recsa:      recsa,
		tr:         tr,
		log:        logger.With("module", "recma", "node", self),
		quorumSize: quorumSize,
		needReconf: make(map[types.NodeID]bool),
		noMaj:      make(map[types.NodeID]bool),
		prevConfig: types.BottomValue(),
	}
}

// core is the intersection of fd_part_k over every k in this processor's
// own fd_part_i, the "core defence" set used to distinguish a genuine
// minority split from stale information (spec.md §8 scenario 1).
func (m *Module) core() types.Set {
	members := m.recsa.FDPart().Sorted()
	if len(members) == 0 {
		return types.NewSet()
	}
	result := m.fdPartFor(members[0]).Clone()
	for _, k := range members[1:] {
		result = result.Intersect(m.fdPartFor(k))
	}
	return result
}

func (m *Module) fdPartFor(k types.NodeID) types.Set {
	if k == m.self {
		return m.recsa.FDPart()
	}
	return m.recsa.FDPartOf(k)
}

// evalConfig is the default reconfiguration trigger: fewer trusted members
// of cur than min(3/4 * |cur|, quorumSize).
func (m *Module) evalConfig(cur types.Set) bool {
	trusted := m.recsa.Trusted()
	trustedCount := 0
	for id := range cur {
		if trusted.Contains(id) {
			trustedCount++
		}
	}
	threshold := (3 * len(cur)) / 4
	if m.quorumSize < threshold {
		threshold = m.quorumSize
	}
	return trustedCount < threshold
}

// flushFlags resets need_reconf/no_maj to false for every member of
// members (spec.md §8 scenario 2: flush_flags operates over the trusted
// set, not just the participants, so a trusted-but-non-participant id
// doesn't carry a stale flag forward).
func (m *Module) flushFlags(members types.Set) {
	for _, k := range members.Sorted() {
		m.needReconf[k] = false
		m.noMaj[k] = false
	}
}

// Run drives the main loop until ctx is cancelled.
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

	fdPart := m.recsa.FDPart()
	if !fdPart.Contains(m.self) {
		return
	}

	cur := m.recsa.GetConfig()
	trusted := m.recsa.Trusted()
	m.needReconf[m.self] = false
	m.noMaj[m.self] = false

	if !cur.Equal(m.prevConfig) && !m.prevConfig.IsBottom() {
		m.flushFlags(trusted)
	}

	if m.recsa.AllowReco() && cur.Kind == types.Real {
		m.prevConfig = cur
		trustedInCur := 0
		for id := range cur.Set {
			if trusted.Contains(id) {
				trustedInCur++
			}
		}
		majority := len(cur.Set)/2 + 1
		m.noMaj[m.self] = trustedInCur < majority

		core := m.core()
		coreMemberNoMaj := false
		for _, k := range core.Sorted() {
			if m.noMaj[k] {
				coreMemberNoMaj = true
			}
		}

		if m.noMaj[m.self] && len(core) > 1 && coreMemberNoMaj {
			m.recsa.Estab(fdPart.Clone())
			m.flushFlags(trusted)
		} else {
			m.needReconf[m.self] = m.evalConfig(cur.Set)
			if m.needReconf[m.self] && m.majorityAgrees(cur.Set) {
				m.recsa.Estab(fdPart.Clone())
				m.flushFlags(trusted)
			}
		}
	}

	for _, k := range fdPart.Sorted() {
		m.sendEcho(ctx, k)
	}
}

// majorityAgrees reports whether need_reconf holds for a majority of the
// trusted members of cur.
func (m *Module) majorityAgrees(cur types.Set) bool {
	trusted := m.recsa.Trusted()
	total, agree := 0, 0
	for id := range cur {
		if !trusted.Contains(id) {
			continue
		}
		total++
		if m.needReconf[id] {
			agree++
		}
	}
	if total == 0 {
		return false
	}
	return agree > total/2
}

func (m *Module) sendEcho(ctx context.Context, to types.NodeID) {
	payload := wire.RecmaPayload{NoMaj: m.noMaj[m.self], NeedReconf: m.needReconf[m.self]}
	msg, err := wire.Encode(wire.RecmaMessage, m.self, payload)
	if err != nil {
		m.log.Error("encode recma echo", "to", to, "err", err)
		return
	}
	if err := m.tr.SendToNode(ctx, to, msg); err != nil {
		m.log.Debug("send recma echo failed", "to", to, "err", err)
	}
}

// ReceiveMsg absorbs a peer's {no_maj, need_reconf} echo.
func (m *Module) ReceiveMsg(sender types.NodeID, p wire.RecmaPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noMaj[sender] = p.NoMaj
	m.needReconf[sender] = p.NeedReconf
}

// GetData exposes the module's state for the /data introspection endpoint.
func (m *Module) GetData() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"need_reconf": copyBoolMap(m.needReconf),
		"no_maj":      copyBoolMap(m.noMaj),
		"prev_config": m.prevConfig.String(),
	}
}

func copyBoolMap(in map[types.NodeID]bool) map[types.NodeID]bool {
	out := make(map[types.NodeID]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
