package recsa

import "github.com/vitaliisemenov/recsa-core/internal/types"

// staleInfoType1 catches a notification claiming phase 0 while still
// carrying a non-BOTTOM set, an impossible combination once the round that
// produced it should have been pruned.
func (m *Module) staleInfoType1() bool {
	for _, n := range m.prp {
		if n.Phase == types.PhaseQuiescent && !n.Set.IsBottom() {
			return true
		}
	}
	return false
}

// staleInfoType2 catches config entries still carrying BOTTOM or an empty
// real set once they should have settled.
func (m *Module) staleInfoType2() bool {
	for _, v := range m.config {
		if v.IsBottom() || v.IsEmpty() {
			return true
		}
	}
	return false
}

// staleInfoType3 catches degree incoherence among trusted participants:
// a degree outside the corr_deg ring, a peer one phase ahead of this
// processor but not yet in all_seen, or, while some participant is at
// phase 2, two participants carrying distinct proposed sets.
func (m *Module) staleInfoType3() bool {
	a := false
	bSet := types.NewSet()
	var distinctSets []types.Set
	existsPhase2 := false

	for _, k := range m.getFDPartJ(m.self).Sorted() {
		if !m.corrDeg(m.self, k) {
			a = true
		}
		if m.getPrpJ(k).Phase == types.Phase((int(m.getPrpJ(m.self).Phase)+1)%3) {
			bSet.Add(k)
		}
		s := m.getPrpJ(k).Set
		if !s.IsBottom() {
			found := false
			for _, existing := range distinctSets {
				if existing.Equal(s.Set) {
					found = true
					break
				}
			}
			if !found {
				distinctSets = append(distinctSets, s.Set)
			}
		}
		if m.getPrpJ(k).Phase == types.PhaseCommitted {
			existsPhase2 = true
		}
	}

	b := !bSet.Subset(m.allSeen)
	c := existsPhase2 && len(distinctSets) > 1
	return a || b || c
}

// staleInfoType4 catches a config[i] that excludes every participant:
// all trusted participants agree with this processor on fd and fd_part,
// config[i] is not BOTTOM, and yet no participant is a member of it.
func (m *Module) staleInfoType4() bool {
	part := m.getFDPartJ(m.self)

	a := false
	if len(part) > 0 {
		a = true
		fdSelf := m.getFDJ(m.self)
		for _, k := range part.Sorted() {
			if !fdSelf.Equal(m.getFDJ(k)) || !part.Equal(m.getFDPartJ(k)) {
				a = false
			}
		}
	}

	cfg := m.getConfigJ(m.self)
	b := !cfg.IsBottom()

	var c bool
	if cfg.IsBottom() || cfg.Kind == types.NotParticipant {
		c = true
	} else {
		c = true
		for _, k := range part.Sorted() {
			if cfg.Set.Contains(k) {
				c = false
			}
		}
	}

	return a && b && c
}

// noNtfArrived reports whether every trusted participant is still
// quiescent, i.e. no reconfiguration proposal is in flight anywhere
// visible.
func (m *Module) noNtfArrived() bool {
	for _, k := range m.getFDPartJ(m.self).Sorted() {
		if m.getPrpJ(k).Phase != types.PhaseQuiescent {
			return false
		}
	}
	return true
}

// configConflict reports whether two or more trusted processors report
// distinct real configurations, the signal that a brute-force reset is
// needed before progress can resume.
func (m *Module) configConflict() bool {
	var found []types.Set
	for _, j := range m.getFDJ(m.self).Sorted() {
		cfg := m.getConfigJ(j)
		if cfg.Kind == types.Bottom || cfg.Kind == types.NotParticipant {
			continue
		}
		dup := false
		for _, existing := range found {
			if existing.Equal(cfg.Set) {
				dup = true
				break
			}
		}
		if !dup {
			found = append(found, cfg.Set)
		}
	}
	return len(found) > 1
}

// fdsStabilized reports whether every trusted processor currently
// reports the same failure-detector view as this processor.
func (m *Module) fdsStabilized() bool {
	fdSelf := m.getFDJ(m.self)
	for _, j := range fdSelf.Sorted() {
		var reported types.Set
		if j == m.self {
			reported = fdSelf
		} else if s, ok := m.fdOf[j]; ok {
			reported = s
		} else {
			reported = types.NewSet()
		}
		if !reported.Equal(fdSelf) {
			return false
		}
	}
	return true
}
