package recma

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

type stubView struct {
	config    types.ConfigValue
	allowReco bool
	fdPart    types.Set
	trusted   types.Set
	peerParts map[types.NodeID]types.Set
	estabbed  []types.Set
}

func (s *stubView) GetConfig() types.ConfigValue { return s.config }
func (s *stubView) AllowReco() bool              { return s.allowReco }
func (s *stubView) Estab(set types.Set)          { s.estabbed = append(s.estabbed, set) }
func (s *stubView) FDPart() types.Set            { return s.fdPart }
func (s *stubView) Trusted() types.Set           { return s.trusted }
func (s *stubView) FDPartOf(j types.NodeID) types.Set {
	if v, ok := s.peerParts[j]; ok {
		return v
	}
	return types.NewSet()
}

type noopTransport struct{}

func (noopTransport) SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Scenario 1 (spec.md §8): core intersection.
func TestCoreIntersection(t *testing.T) {
	view := &stubView{
		fdPart: types.NewSet(0, 1, 2, 3),
		peerParts: map[types.NodeID]types.Set{
			1: types.NewSet(1, 2, 3),
			2: types.NewSet(1, 2, 3),
			3: types.NewSet(1, 2, 3, 4),
			0: types.NewSet(0, 1, 2),
		},
	}
	m := New(4, 5, view, noopTransport{}, discardLogger(), 0)

	got := m.core()
	assert.ElementsMatch(t, []types.NodeID{1, 2}, got.Sorted())
}

// Scenario 2 (spec.md §8): flush_flags only clears the members passed in.
func TestFlushFlagsOnlyClearsGivenMembers(t *testing.T) {
	view := &stubView{}
	m := New(0, 4, view, noopTransport{}, discardLogger(), 0)
	m.needReconf[0] = true
	m.needReconf[1] = true
	m.noMaj[0] = true
	m.noMaj[1] = true

	m.flushFlags(types.NewSet(1, 2, 3))

	assert.True(t, m.needReconf[0])
	assert.False(t, m.needReconf[1])
	assert.False(t, m.needReconf[2])
	assert.False(t, m.needReconf[3])
	assert.True(t, m.noMaj[0])
	assert.False(t, m.noMaj[1])
}

func TestQuorumSizeDefaultsToMajority(t *testing.T) {
	view := &stubView{}
	m := New(0, 5, view, noopTransport{}, discardLogger(), 0)
	assert.Equal(t, 3, m.quorumSize)
}

func TestTickSkipsWhenNotInFDPart(t *testing.T) {
	view := &stubView{fdPart: types.NewSet(1, 2)}
	m := New(0, 3, view, noopTransport{}, discardLogger(), 0)
	m.tick(context.Background())
	assert.Empty(t, view.estabbed)
}

func TestCoreDefenceTriggersEstab(t *testing.T) {
	view := &stubView{
		config:    types.RealValue(types.NewSet(0, 1, 2, 3)),
		allowReco: true,
		fdPart:    types.NewSet(0, 1, 2, 3),
		trusted:   types.NewSet(0),
		peerParts: map[types.NodeID]types.Set{
			1: types.NewSet(1, 2, 3),
			2: types.NewSet(1, 2, 3),
			3: types.NewSet(1, 2, 3, 4),
		},
	}
	m := New(0, 5, view, noopTransport{}, discardLogger(), 0)
	m.noMaj[1] = true

	m.tick(context.Background())

	assert.Len(t, view.estabbed, 1)
	assert.ElementsMatch(t, []types.NodeID{0, 1, 2, 3}, view.estabbed[0].Sorted())
}
