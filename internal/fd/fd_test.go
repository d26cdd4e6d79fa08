package fd

import (
	"context"
	"log/slog"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitaliisemenov/recsa-core/internal/types"
)

type stubSender struct{}

func (stubSender) SendToken(ctx context.Context, to types.NodeID) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUponTokenUpdatesTrustedSet(t *testing.T) {
	m := New(0, 4, stubSender{}, discardLogger())

	m.uponTokenFrom(1)

	trusted := m.GetTrusted()
	assert.True(t, trusted.Contains(0))
	assert.True(t, trusted.Contains(1))
	assert.True(t, trusted.Contains(2))
	assert.True(t, trusted.Contains(3))
	assert.Equal(t, 1, m.monitor[1])
}

func TestMonitorSaturatesAtThree(t *testing.T) {
	m := New(0, 2, stubSender{}, discardLogger())
	for i := 0; i < 10; i++ {
		m.uponTokenFrom(1)
	}
	assert.Equal(t, 3, m.monitor[1])
	assert.True(t, m.StableMonitor(1))
}

func TestBeatAgingDropsPeer(t *testing.T) {
	m := New(0, 3, stubSender{}, discardLogger())
	m.uponTokenFrom(1)
	for i := 0; i < BeatThreshold; i++ {
		m.uponTokenFrom(1)
	}
	trusted := m.GetTrusted()
	assert.False(t, trusted.Contains(2), "peer 2 never heartbeats and should age out")
}

func TestResetMonitor(t *testing.T) {
	m := New(0, 2, stubSender{}, discardLogger())
	m.uponTokenFrom(1)
	m.ResetMonitor(1)
	assert.False(t, m.StableMonitor(1))
}
