package recsa

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

type fixedTrust struct{ s types.Set }

func (f fixedTrust) GetTrusted() types.Set { return f.s }

type recordingTransport struct {
	sent []types.NodeID
}

func (r *recordingTransport) SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error {
	r.sent = append(r.sent, to)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModule(self types.NodeID, n int, trusted types.Set) (*Module, *recordingTransport) {
	tr := &recordingTransport{}
	m := New(self, n, fixedTrust{trusted}, tr, discardLogger(), types.RealValue(types.NewSet(0, 1, 2)))
	return m, tr
}

// Scenario 3 (spec.md §8): chs_config union, excluding untrusted peers.
func TestChsConfigUnion(t *testing.T) {
	m, _ := newTestModule(0, 3, types.NewSet(0, 2))
	m.config[0] = types.RealValue(types.NewSet(0, 1))
	m.config[1] = types.RealValue(types.NewSet(1, 2, 3))
	m.config[2] = types.RealValue(types.NewSet(1, 5))

	got := m.chsConfig()
	require.True(t, got.IsReal())
	assert.ElementsMatch(t, []types.NodeID{0, 1, 5}, got.Set.Sorted())
}

// Scenario 4 (spec.md §8): degree arithmetic.
func TestDegreeArithmetic(t *testing.T) {
	m, _ := newTestModule(0, 3, types.NewSet(0, 1))
	m.prp[1] = types.Notification{Phase: types.PhaseProposed, Set: types.BottomValue()}

	m.all[1] = true
	assert.Equal(t, 3, m.degree(1))

	m.all[1] = false
	assert.Equal(t, 2, m.degree(1))
}

// Scenario 5 (spec.md §8): increment transitions.
func TestIncrementTransitions(t *testing.T) {
	m, _ := newTestModule(0, 3, types.NewSet(0))

	next, all := m.increment(types.Notification{Phase: types.PhaseProposed, Set: types.RealValue(types.NewSet(1, 2))})
	assert.Equal(t, types.PhaseCommitted, next.Phase)
	assert.True(t, next.Set.Equal(types.RealValue(types.NewSet(1, 2))))
	assert.False(t, all)

	next, all = m.increment(types.Notification{Phase: types.PhaseCommitted, Set: types.RealValue(types.NewSet(1, 2))})
	assert.True(t, next.IsDefault())
	assert.False(t, all)

	m.prp[0] = types.Notification{Phase: types.PhaseProposed, Set: types.RealValue(types.NewSet(9))}
	m.all[0] = true
	next, all = m.increment(types.Notification{Phase: types.PhaseQuiescent, Set: types.BottomValue()})
	assert.Equal(t, m.prp[0], next)
	assert.True(t, all)
}

func TestCorrDegWrapsAtRing(t *testing.T) {
	m, _ := newTestModule(0, 2, types.NewSet(0, 1))
	m.prp[0] = types.Notification{Phase: types.PhaseCommitted, Set: types.BottomValue()}
	m.all[0] = true // degree(0) = 5
	m.prp[1] = types.Notification{Phase: types.PhaseQuiescent, Set: types.BottomValue()}
	m.all[1] = false // degree(1) = 0

	assert.True(t, m.corrDeg(0, 1))
}

func TestStaleInfoType1DetectsNonBottomAtPhaseZero(t *testing.T) {
	m, _ := newTestModule(0, 2, types.NewSet(0, 1))
	m.prp[1] = types.Notification{Phase: types.PhaseQuiescent, Set: types.RealValue(types.NewSet(1))}
	assert.True(t, m.staleInfoType1())
}

func TestStaleInfoType2DetectsBottomAndEmpty(t *testing.T) {
	m, _ := newTestModule(0, 2, types.NewSet(0, 1))
	m.config[1] = types.BottomValue()
	assert.True(t, m.staleInfoType2())

	m.config[1] = types.RealValue(types.NewSet())
	assert.True(t, m.staleInfoType2())

	m.config[1] = types.RealValue(types.NewSet(1))
	assert.False(t, m.staleInfoType2())
}

func TestConfigSetIdempotent(t *testing.T) {
	m, _ := newTestModule(0, 3, types.NewSet(0, 1, 2))
	m.prp[1] = types.Notification{Phase: types.PhaseProposed, Set: types.RealValue(types.NewSet(1))}

	m.configSet(types.BottomValue())
	after1 := snapshotConfig(m)
	m.configSet(types.BottomValue())
	after2 := snapshotConfig(m)

	assert.Equal(t, after1, after2)
	for k := 0; k < 3; k++ {
		assert.True(t, m.config[types.NodeID(k)].IsBottom())
		assert.True(t, m.prp[types.NodeID(k)].IsDefault())
	}
}

func snapshotConfig(m *Module) map[types.NodeID]string {
	out := make(map[types.NodeID]string, len(m.config))
	for k, v := range m.config {
		out[k] = v.String()
	}
	return out
}

func TestEstabRejectsWhenNotAllowed(t *testing.T) {
	m, _ := newTestModule(0, 3, types.NewSet(0, 1, 2))
	// allowReco requires every peer at DFLT_NTF with all[k]=true; with no
	// peer state populated the defaults (DfltNtf, all=false) already fail
	// condition 7, so Estab must be a no-op.
	m.Estab(types.NewSet(4, 5))
	assert.True(t, m.prp[0].IsDefault())
}

func TestTickBroadcastsToEveryTrustedPeer(t *testing.T) {
	m, tr := newTestModule(0, 2, types.NewSet(0, 1))
	m.config[1] = types.RealValue(types.NewSet(0, 1))

	m.tick(context.Background())

	// trusted_i always contains i itself (spec.md §4.2 step 7), so the
	// broadcast set is every trusted peer including self.
	assert.ElementsMatch(t, []types.NodeID{0, 1}, tr.sent)
}

func TestNoNtfArrivedTrueWhenAllQuiescent(t *testing.T) {
	m, _ := newTestModule(0, 2, types.NewSet(0, 1))
	m.config[1] = types.RealValue(types.NewSet(0, 1))
	assert.True(t, m.noNtfArrived())

	m.prp[1] = types.Notification{Phase: types.PhaseProposed, Set: types.RealValue(types.NewSet(0, 1))}
	assert.False(t, m.noNtfArrived())
}
