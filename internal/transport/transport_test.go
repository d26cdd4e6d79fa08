package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/recsa-core/internal/byzantine"
	"github.com/vitaliisemenov/recsa-core/internal/hosts"
	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingServer struct {
	mu       sync.Mutex
	received []wire.Message
	server   *httptest.Server
}

func newRecordingServer() *recordingServer {
	rs := &recordingServer{}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg wire.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		rs.mu.Lock()
		rs.received = append(rs.received, msg)
		rs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	return rs
}

func (rs *recordingServer) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.received)
}

func (rs *recordingServer) hostRecord(id types.NodeID) hosts.Record {
	u, _ := url.Parse(rs.server.URL)
	host, portStr, _ := strings.Cut(u.Host, ":")
	port, _ := strconv.Atoi(portStr)
	return hosts.Record{ID: id, Hostname: host, IP: host, Port: port}
}

func TestSendToNodeDeliversToDispatchEndpoint(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	tr := New(0, map[types.NodeID]hosts.Record{1: rs.hostRecord(1)}, nil, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	msg, err := wire.Encode(wire.RecsaMessage, 0, wire.RecsaPayload{})
	require.NoError(t, err)
	require.NoError(t, tr.SendToNode(ctx, 1, msg))

	require.Eventually(t, func() bool { return rs.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSendToNodeDropAllSuppressesDelivery(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	reg := byzantine.NewRegistry()
	reg.Set(byzantine.DropAll)
	tr := New(0, map[types.NodeID]hosts.Record{1: rs.hostRecord(1)}, reg, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	msg, err := wire.Encode(wire.RecsaMessage, 0, wire.RecsaPayload{})
	require.NoError(t, err)
	require.NoError(t, tr.SendToNode(ctx, 1, msg))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rs.count())
}

func TestSendToNodeDuplicateSendsTwice(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	reg := byzantine.NewRegistry()
	reg.Set(byzantine.Duplicate)
	tr := New(0, map[types.NodeID]hosts.Record{1: rs.hostRecord(1)}, reg, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	msg, err := wire.Encode(wire.RecsaMessage, 0, wire.RecsaPayload{})
	require.NoError(t, err)
	require.NoError(t, tr.SendToNode(ctx, 1, msg))

	require.Eventually(t, func() bool { return rs.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestSendToNodeUnknownPeerErrors(t *testing.T) {
	tr := New(0, map[types.NodeID]hosts.Record{}, nil, nil, discardLogger())
	msg, err := wire.Encode(wire.RecsaMessage, 0, wire.RecsaPayload{})
	require.NoError(t, err)
	assert.Error(t, tr.SendToNode(context.Background(), 7, msg))
}

func TestUpdateAddsSenderLoopForNewPeer(t *testing.T) {
	rs := newRecordingServer()
	defer rs.server.Close()

	tr := New(0, map[types.NodeID]hosts.Record{}, nil, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	tr.Update(ctx, map[types.NodeID]hosts.Record{2: rs.hostRecord(2)})

	msg, err := wire.Encode(wire.RecsaMessage, 0, wire.RecsaPayload{})
	require.NoError(t, err)
	require.NoError(t, tr.SendToNode(ctx, 2, msg))
	require.Eventually(t, func() bool { return rs.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBoundedQueueDropsOldestOnOverflow(t *testing.T) {
	q := newBoundedQueue(2)
	q.push(wire.Message{Sender: 1})
	q.push(wire.Message{Sender: 2})
	dropped := q.push(wire.Message{Sender: 3})
	assert.True(t, dropped)

	ctx := context.Background()
	first, ok := q.pop(ctx)
	require.True(t, ok)
	assert.Equal(t, types.NodeID(2), first.Sender)
}
