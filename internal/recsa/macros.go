package recsa

import "github.com/vitaliisemenov/recsa-core/internal/types"

// chsConfig is the union-of-trusted-configs fallback GetConfig falls back to
// once AllowReco holds (spec.md §4.2, chs_config).
func (m *Module) chsConfig() types.ConfigValue {
	out := types.NewSet()
	for _, j := range m.getFDJ(m.self).Sorted() {
		cfg := m.getConfigJ(j)
		if cfg.Kind == types.Real {
			out = out.Union(cfg.Set)
		}
	}
	if len(out) == 0 {
		return types.BottomValue()
	}
	return types.RealValue(out)
}

// myAll reports all_j(k) with the phase-ahead extension the original
// applies only to self: k counts as "all-seen" if it has reported all, or
// k is self and some already-seen peer has advanced to the next phase.
func (m *Module) myAll(k types.NodeID) bool {
	if m.getAllJ(k) {
		return true
	}
	if k != m.self {
		return false
	}
	ahead := types.Phase((int(m.getPrpJ(m.self).Phase) + 1) % 3)
	for _, l := range m.allSeen.Sorted() {
		if m.getPrpJ(l).Phase == ahead {
			return true
		}
	}
	return false
}

// degree maps (phase, all) onto a point on the mod-6 ring the stale-info
// checks and allow_reco compare against (spec.md §4.2).
func (m *Module) degree(k types.NodeID) int {
	d := 2 * int(m.getPrpJ(k).Phase)
	if m.myAll(k) {
		d++
	}
	return d
}

// corrDeg reports whether k and kPrime's degrees are within one step of
// each other around the ring of size 6 (adjacent, equal, or wrapping at
// 5/0).
func (m *Module) corrDeg(k, kPrime types.NodeID) bool {
	diff := ((m.degree(k) - m.degree(kPrime)) % 6 + 6) % 6
	return diff == 0 || diff == 1 || diff == 5
}

// echoNoAll compares this processor's own fd_part and prp with the copies
// of them that k last echoed back, ignoring the all flag.
func (m *Module) echoNoAll(k types.NodeID) bool {
	samePart := m.getFDPartJ(m.self).Equal(m.getEchoPartJ(k))
	samePrp := m.getPrpJ(m.self).Equal(m.getEchoPrpJ(k))
	return samePart && samePrp
}

// echoFun is echoNoAll plus the all flag and degree-adjacency checks
// (spec.md §4.2).
func (m *Module) echoFun(k types.NodeID) bool {
	sameAll := m.myAll(m.self) == m.getEchoAllJ(k)
	diff := ((m.degree(k) - m.degree(m.self)) % 6 + 6) % 6
	okDeg := diff == 0 || diff == 1
	return m.echoNoAll(k) && sameAll && okDeg
}

// increment advances a notification past its current phase: proposed goes
// to committed (set unchanged), committed resets to the quiescent default.
// Any other phase is returned unchanged along with all[self].
func (m *Module) increment(prp types.Notification) (types.Notification, bool) {
	switch prp.Phase {
	case types.PhaseProposed:
		return types.Notification{Phase: types.PhaseCommitted, Set: prp.Set}, false
	case types.PhaseCommitted:
		return types.DfltNtf(), false
	default:
		return m.getPrpJ(m.self), m.getAllJ(m.self)
	}
}

// allSeenFun reports whether this processor has itself reported all and
// every trusted participant has been seen to do the same.
func (m *Module) allSeenFun() bool {
	return m.getAllJ(m.self) && m.getFDPartJ(m.self).Subset(m.allSeen.Union(types.NewSet(m.self)))
}

// modMax resolves ties when trusted participants straddle a phase boundary:
// if some but not all have advanced to phase 1 while none has reached phase
// 2, and self is lagging, self jumps to the max observed phase and all_seen
// is wiped so the catch-up is re-verified from scratch.
func (m *Module) modMax() types.Phase {
	seen1, seen2 := false, false
	maxPhase := m.getPrpJ(m.self).Phase
	for _, k := range m.getFDPartJ(m.self).Sorted() {
		p := m.getPrpJ(k).Phase
		if p == types.PhaseProposed {
			seen1 = true
		}
		if p == types.PhaseCommitted {
			seen2 = true
		}
		if p > maxPhase {
			maxPhase = p
		}
	}
	if seen1 && !seen2 && m.getPrpJ(m.self).Phase != maxPhase {
		m.allSeen = types.NewSet()
		return maxPhase
	}
	return m.getPrpJ(m.self).Phase
}

// maxNtf adopts the lexicographically-greatest proposed set among trusted
// participants whose degrees are within one step of self's, provided they
// all are; otherwise self's notification is left untouched.
func (m *Module) maxNtf() types.Notification {
	part := m.getFDPartJ(m.self)
	for _, k := range part.Sorted() {
		diff := ((m.degree(k) - m.degree(m.self)) % 6 + 6) % 6
		if diff != 0 && diff != 1 {
			return m.getPrpJ(m.self)
		}
	}
	best := types.BottomValue()
	for _, k := range part.Sorted() {
		best = maxLex(best, m.getPrpJ(k).Set)
	}
	return types.Notification{Phase: m.modMax(), Set: best}
}

// maxLex picks the lexicographically greater of two real configuration
// sets by their sorted id sequence, treating BOTTOM as the minimum.
func maxLex(a, b types.ConfigValue) types.ConfigValue {
	if a.IsBottom() {
		return b
	}
	if b.IsBottom() {
		return a
	}
	sa, sb := a.Set.Sorted(), b.Set.Sorted()
	for i := 0; i < len(sa) && i < len(sb); i++ {
		if sa[i] != sb[i] {
			if sa[i] > sb[i] {
				return a
			}
			return b
		}
	}
	if len(sa) >= len(sb) {
		return a
	}
	return b
}
