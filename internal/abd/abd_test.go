package abd

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

type fixedQuorum struct{ s types.Set }

func (f fixedQuorum) GetConfigApp() types.Set { return f.s }

type recordingTransport struct {
	mu   sync.Mutex
	sent []wire.ABDPayload
}

func (r *recordingTransport) SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error {
	var p wire.ABDPayload
	if err := wire.Decode(msg, &p); err != nil {
		return err
	}
	r.mu.Lock()
	r.sent = append(r.sent, p)
	r.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteBlocksUntilMajorityAcks(t *testing.T) {
	quorum := types.NewSet(0, 1, 2)
	m := New(0, true, fixedQuorum{quorum}, &recordingTransport{}, discardLogger())

	done := make(chan error, 1)
	go func() {
		done <- m.Write(context.Background(), []byte(`"hello"`))
	}()

	// need = (3+2)/2 = 2; self auto-acks, so one more peer ack suffices.
	time.Sleep(20 * time.Millisecond)
	m.ReceiveMsg(context.Background(), 1, wire.ABDPayload{Type: wire.WriteAck, Label: 1})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after majority ack")
	}

	// label starts at types.Bot and the first write increments it once.
	assert.Equal(t, types.Bot+1, m.label)
}

func TestWriteUnblocksOnContextCancel(t *testing.T) {
	quorum := types.NewSet(0, 1, 2, 3, 4)
	m := New(0, true, fixedQuorum{quorum}, &recordingTransport{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Write(ctx, []byte(`"x"`))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("write did not unblock on cancellation")
	}
}

func TestReadAdoptsHighestObservedLabel(t *testing.T) {
	quorum := types.NewSet(0, 1, 2)
	m := New(0, false, fixedQuorum{quorum}, &recordingTransport{}, discardLogger())

	done := make(chan struct{})
	var readErr error
	var value []byte
	go func() {
		value, readErr = m.Read(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	m.ReceiveMsg(context.Background(), 1, wire.ABDPayload{Type: wire.ReadRequestAck, Label: 5, Value: []byte(`"from-peer"`)})
	time.Sleep(20 * time.Millisecond)
	m.ReceiveMsg(context.Background(), 1, wire.ABDPayload{Type: wire.ReadConfirmAck})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read did not complete")
	}

	require.NoError(t, readErr)
	assert.Equal(t, []byte(`"from-peer"`), []byte(value))
	assert.Equal(t, 5, m.label)
}

func TestReceiveWriteAdoptsHigherLabel(t *testing.T) {
	m := New(1, false, fixedQuorum{types.NewSet(0, 1)}, &recordingTransport{}, discardLogger())
	m.ReceiveMsg(context.Background(), 0, wire.ABDPayload{Type: wire.Write, Label: 3, Value: []byte(`"v"`)})
	assert.Equal(t, 3, m.label)
	assert.Equal(t, []byte(`"v"`), []byte(m.value))
}
