// Package recsa implements Reconfiguration Stability Assurance: the
// round-based three-phase "delicate" reconfiguration protocol and its four
// classes of stale-information detection (spec.md §4.2).
package recsa

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

// FailureDetectorView is the slice of the failure detector RecSA consumes.
type FailureDetectorView interface {
	GetTrusted() types.Set
}

// Transport delivers a RecSA state message to a peer. Sends are
// non-blocking enqueues; delivery failures are logged, not retried inline.
type Transport interface {
	SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error
}

// Module is one processor's RecSA state machine.
type Module struct {
	self types.NodeID
	n    int
	fd   FailureDetectorView
	tr   Transport
	log  *slog.Logger

	mu sync.Mutex

	config   map[types.NodeID]types.ConfigValue
	fdOf     map[types.NodeID]types.Set // fd[k] for k != self
	fdPartOf map[types.NodeID]types.Set // fd_part[k] for k != self
	echoPart map[types.NodeID]types.Set
	echoPrp  map[types.NodeID]types.Notification
	echoAll  map[types.NodeID]bool
	prp      map[types.NodeID]types.Notification
	all      map[types.NodeID]bool
	allSeen  types.Set
}

// New constructs a RecSA module. initConfig seeds config[self]; processors
// start as NOT_PARTICIPANT or BOTTOM per spec.md §3's lifecycle.
func New(self types.NodeID, n int, fdView FailureDetectorView, tr Transport, logger *slog.Logger, initConfig types.ConfigValue) *Module {
	m := &Module{
		self:     self,
		n:        n,
		fd:       fdView,
		tr:       tr,
		log:      logger.With("module", "recsa", "node", self),
		config:   make(map[types.NodeID]types.ConfigValue),
		fdOf:     make(map[types.NodeID]types.Set),
		fdPartOf: make(map[types.NodeID]types.Set),
		echoPart: make(map[types.NodeID]types.Set),
		echoPrp:  make(map[types.NodeID]types.Notification),
		echoAll:  make(map[types.NodeID]bool),
		prp:      make(map[types.NodeID]types.Notification),
		all:      make(map[types.NodeID]bool),
		allSeen:  types.NewSet(),
	}
	m.config[self] = initConfig
	return m
}

// --- getters with the defaults the algorithm relies on for never-seen ids ---

func (m *Module) getConfigJ(j types.NodeID) types.ConfigValue {
	if v, ok := m.config[j]; ok {
		return v
	}
	return types.RealValue(types.NewSet())
}

func (m *Module) getFDJ(j types.NodeID) types.Set {
	if j == m.self {
		return m.fd.GetTrusted()
	}
	if s, ok := m.fdOf[j]; ok {
		return s
	}
	return types.NewSet()
}

// getFDPartJ computes fd_part_i = { k in trusted_i : config[k] != NOT_PARTICIPANT
// and config[k] has been observed at all } when j == self, and returns the
// last-reported value otherwise.
func (m *Module) getFDPartJ(j types.NodeID) types.Set {
	if j == m.self {
		out := types.NewSet()
		for _, pj := range m.getFDJ(m.self).Sorted() {
			if v, ok := m.config[pj]; ok && v.Kind != types.NotParticipant {
				out.Add(pj)
			}
		}
		return out
	}
	if s, ok := m.fdPartOf[j]; ok {
		return s
	}
	return types.NewSet()
}

func (m *Module) getEchoPartJ(j types.NodeID) types.Set {
	if j == m.self {
		return m.getFDPartJ(m.self)
	}
	if s, ok := m.echoPart[j]; ok {
		return s
	}
	return types.NewSet()
}

func (m *Module) getEchoPrpJ(j types.NodeID) types.Notification {
	if j == m.self {
		return m.getPrpJ(m.self)
	}
	if n, ok := m.echoPrp[j]; ok {
		return n
	}
	return types.DfltNtf()
}

func (m *Module) getEchoAllJ(j types.NodeID) bool {
	if j == m.self {
		return m.getAllJ(m.self)
	}
	return m.echoAll[j]
}

func (m *Module) getPrpJ(j types.NodeID) types.Notification {
	if n, ok := m.prp[j]; ok {
		return n
	}
	return types.DfltNtf()
}

func (m *Module) getAllJ(j types.NodeID) bool {
	return m.all[j]
}

// --- exported interface functions (spec.md §4.2) ---

// GetConfig returns the configuration this processor currently uses.
func (m *Module) GetConfig() types.ConfigValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowReco() {
		return m.chsConfig()
	}
	return m.getConfigJ(m.self)
}

// GetConfigApp returns the quorum set the application must use right now,
// spanning old and incoming configuration during the second half of a
// handover (spec.md §4.2).
func (m *Module) GetConfigApp() types.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.degree(m.self)
	cur := m.getConfigJ(m.self)
	if d == 0 || d == 1 || d == 2 {
		if cur.Kind == types.Real {
			return cur.Set.Clone()
		}
		return types.NewSet()
	}
	out := types.NewSet()
	if cur.Kind == types.Real {
		out = cur.Set.Clone()
	}
	prp := m.getPrpJ(m.self)
	if prp.Set.Kind == types.Real {
		out = out.Union(prp.Set.Set)
	}
	return out
}

// AllowReco reports whether this processor may initiate or accept a new
// reconfiguration right now (spec.md §4.2, the seven allow_reco conditions).
func (m *Module) AllowReco() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowReco()
}

func (m *Module) allowReco() bool {
	var fdOfTrusted []types.Set
	partOfTrusted := []types.Set{m.getFDPartJ(m.self)}
	noReset := true
	allDfltNtf := true

	for _, j := range m.getFDJ(m.self).Sorted() {
		if j != m.self {
			fdOfTrusted = append(fdOfTrusted, m.getFDJ(j))
			partOfJ := m.getFDPartJ(j).Union(m.getEchoPartJ(j))
			if !containsSet(partOfTrusted, partOfJ) {
				// Resolution of spec.md §9's Open Question: the original's
				// `part_of_trusted.append(part_of_trusted)` is a bug; the
				// fix appends the peer's own view, partOfJ.
				partOfTrusted = append(partOfTrusted, partOfJ)
			}
		}
		if m.getConfigJ(j).IsBottom() {
			noReset = false
		}
		if !m.getPrpJ(j).IsDefault() || !m.getAllJ(j) {
			allDfltNtf = false
		}
	}

	trustedByTrusted := false
	if len(fdOfTrusted) > 0 {
		inter := fdOfTrusted[0].Clone()
		for _, s := range fdOfTrusted[1:] {
			inter = inter.Intersect(s)
		}
		trustedByTrusted = inter.Contains(m.self)
	}
	partStabilized := len(partOfTrusted) == 1

	allPartEcho := true
	for _, k := range m.getFDPartJ(m.self).Sorted() {
		if !m.echoFun(k) {
			allPartEcho = false
		}
	}

	return !m.configConflict() && m.allSeenFun() && allPartEcho &&
		trustedByTrusted && partStabilized && noReset && allDfltNtf
}

func containsSet(sets []types.Set, s types.Set) bool {
	for _, x := range sets {
		if x.Equal(s) {
			return true
		}
	}
	return false
}

// Estab is RecMA's request to replace the configuration with s. Accepted
// only if AllowReco holds and s is non-empty and differs from config[i].
func (m *Module) Estab(s types.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.allowReco() {
		return
	}
	cur := m.getConfigJ(m.self)
	if len(s) == 0 {
		return
	}
	if cur.Kind == types.Real && cur.Set.Equal(s) {
		return
	}
	m.log.Info("estab accepted", "proposed", s.Sorted())
	m.prp[m.self] = types.Notification{Phase: types.PhaseProposed, Set: types.RealValue(s.Clone())}
	m.all[m.self] = false
	m.allSeen = types.NewSet()
}

// Participate is the Joining Mechanism's request to admit this processor.
func (m *Module) Participate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowReco() {
		m.config[m.self] = m.chsConfig()
	}
}

// ConfigSet is the privileged config_set(v) macro: every locally observed
// config[k] becomes v and every prp[k] becomes DFLT_NTF. Used both by the
// stale-info brute-force reset and by test injection (/inject_conf).
func (m *Module) ConfigSet(v types.ConfigValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configSet(v)
}

func (m *Module) configSet(v types.ConfigValue) {
	for k := 0; k < m.n; k++ {
		id := types.NodeID(k)
		m.config[id] = v
		m.prp[id] = types.DfltNtf()
	}
	m.log.Debug("config_set applied", "value", v.String())
}

// PrpSet is the privileged prp_set((phase,set)) test injection hook
// (/inject_prp): it forces this processor's own notification.
func (m *Module) PrpSet(n types.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prp[m.self] = n
	m.all[m.self] = false
	m.allSeen = types.NewSet()
}

// Run drives the main loop until ctx is cancelled (spec.md §4.2, "Main
// loop").
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

	// 1. Prune: entries for non-participants are aggressively overwritten.
	trusted := m.getFDPartJ(m.self)
	for k := 0; k < m.n; k++ {
		id := types.NodeID(k)
		if !trusted.Contains(id) {
			m.config[id] = types.NotParticipantValue()
			m.prp[id] = types.DfltNtf()
		}
	}

	// 2. Adopt the globally advancing notification.
	m.prp[m.self] = m.maxNtf()

	// 3. Recompute all[i].
	allNoAll := true
	for _, k := range m.getFDPartJ(m.self).Sorted() {
		if !m.echoNoAll(k) {
			allNoAll = false
		}
	}
	m.all[m.self] = allNoAll

	// 4. Extend all_seen.
	for _, k := range m.getFDPartJ(m.self).Sorted() {
		if m.getAllJ(k) {
			m.allSeen.Add(k)
		}
	}

	// 5. Stale check.
	if m.staleInfoType1() || m.staleInfoType2() || m.staleInfoType3() || m.staleInfoType4() {
		m.configSet(types.BottomValue())
	}

	// 6. Progress.
	if m.noNtfArrived() {
		if m.configConflict() {
			m.log.Debug("stale info: config conflict")
			m.configSet(types.BottomValue())
		}
		if m.getConfigJ(m.self).IsBottom() && m.fdsStabilized() {
			m.configSet(types.RealValue(m.getFDJ(m.self)))
		}
	} else {
		prpSelf := m.getPrpJ(m.self)
		if prpSelf.Phase == types.PhaseCommitted && m.getAllJ(m.self) {
			m.config[m.self] = prpSelf.Set
		}
		if m.allSeenFun() {
			echoFunAll := true
			for _, k := range m.getFDPartJ(m.self).Sorted() {
				if !m.echoFun(k) {
					echoFunAll = false
				}
			}
			if echoFunAll {
				next, allNext := m.increment(m.getPrpJ(m.self))
				m.prp[m.self] = next
				m.all[m.self] = allNext
				m.allSeen = types.NewSet()
			}
		}
	}

	// 7. Broadcast.
	if m.getConfigJ(m.self).Kind != types.NotParticipant {
		for _, j := range m.getFDJ(m.self).Sorted() {
			m.sendState(ctx, j)
		}
	} else {
		m.log.Debug("not a participant, not sending state")
	}
}

// FDPart returns this processor's current participant set, the view
// RecMA's core defence and majority checks consume.
func (m *Module) FDPart() types.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getFDPartJ(m.self)
}

// Trusted returns this processor's current failure-detector view.
func (m *Module) Trusted() types.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getFDJ(m.self)
}

// FDPartOf returns the last-reported participant set for peer j, used by
// RecMA's core() intersection.
func (m *Module) FDPartOf(j types.NodeID) types.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getFDPartJ(j)
}

// GetData exposes the module's state for the /data introspection endpoint.
func (m *Module) GetData() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	config := make(map[types.NodeID]string, len(m.config))
	for k, v := range m.config {
		config[k] = v.String()
	}
	return map[string]any{
		"fd":      m.getFDJ(m.self).Sorted(),
		"fd_part": m.getFDPartJ(m.self).Sorted(),
		"config":  config,
		"prp":     m.getPrpJ(m.self),
		"alll":    m.myAll(m.self),
	}
}
