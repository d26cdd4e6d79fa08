// Package transport carries inter-node messages over HTTP (control
// messages, per-peer bounded queues) and UDP (failure-detector tokens,
// best-effort and unordered), per spec.md §5/§6.3.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vitaliisemenov/recsa-core/internal/byzantine"
	"github.com/vitaliisemenov/recsa-core/internal/hosts"
	"github.com/vitaliisemenov/recsa-core/internal/metrics"
	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// DispatchPath is the HTTP route a peer's transport POSTs control
// messages to; internal/api mounts the receiving handler here.
const DispatchPath = "/internal/dispatch"

// clientTimeout bounds a single dispatch POST; the queue, not this
// client, is responsible for retry via the periodic module loops.
const clientTimeout = 2 * time.Second

// Transport is one processor's outbound message fabric: one bounded
// queue plus sender goroutine per peer for control messages, and a
// shared UDP socket for failure-detector tokens.
type Transport struct {
	self types.NodeID
	log  *slog.Logger

	mu    sync.RWMutex
	peers map[types.NodeID]hosts.Record

	queues map[types.NodeID]*boundedQueue
	dedup  *dedupCache

	client *http.Client
	byz    *byzantine.Registry
	met    *metrics.Metrics

	udpConn  *net.UDPConn
	onToken  func(sender types.NodeID)

	wg sync.WaitGroup
}

// New constructs a Transport for self, with the given initial peer
// addresses. byz and met may be nil.
func New(self types.NodeID, peers map[types.NodeID]hosts.Record, byz *byzantine.Registry, met *metrics.Metrics, logger *slog.Logger) *Transport {
	t := &Transport{
		self:   self,
		log:    logger.With("component", "transport", "node", self),
		peers:  make(map[types.NodeID]hosts.Record, len(peers)),
		queues: make(map[types.NodeID]*boundedQueue, len(peers)),
		dedup:  newDedupCache(),
		client: &http.Client{Timeout: clientTimeout},
		byz:    byz,
		met:    met,
	}
	for id, rec := range peers {
		t.peers[id] = rec
		t.queues[id] = newBoundedQueue(MaxQueueSize)
	}
	return t
}

// ListenUDP binds the shared UDP socket used for FD tokens on port and
// records onToken, which Run's receive loop invokes for each token read.
// Must be called before Run if FD tokens are needed.
func (t *Transport) ListenUDP(port int, onToken func(sender types.NodeID)) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("transport: listen udp :%d: %w", port, err)
	}
	t.udpConn = conn
	t.onToken = onToken
	return nil
}

// Run starts one sender goroutine per known peer (for control messages)
// plus the UDP token receive loop, blocking until ctx is cancelled.
func (t *Transport) Run(ctx context.Context) error {
	t.mu.RLock()
	for id, q := range t.queues {
		t.wg.Add(1)
		go t.senderLoop(ctx, id, q)
	}
	t.mu.RUnlock()

	if t.udpConn != nil {
		t.wg.Add(1)
		go t.udpReceiveLoop(ctx)
	}

	<-ctx.Done()
	t.wg.Wait()
	if t.udpConn != nil {
		t.udpConn.Close()
	}
	return nil
}

// Update refreshes the peer address book, starting a sender goroutine for
// any newly admitted peer (resolver.Refresh, spec.md §4.5).
func (t *Transport) Update(ctx context.Context, peers map[types.NodeID]hosts.Record) {
	t.mu.Lock()
	var fresh []types.NodeID
	for id, rec := range peers {
		t.peers[id] = rec
		if _, ok := t.queues[id]; !ok {
			t.queues[id] = newBoundedQueue(MaxQueueSize)
			fresh = append(fresh, id)
		}
	}
	t.mu.Unlock()

	for _, id := range fresh {
		t.mu.RLock()
		q := t.queues[id]
		t.mu.RUnlock()
		t.wg.Add(1)
		go t.senderLoop(ctx, id, q)
	}
}

// SendToNode enqueues msg for to, implementing the Transport interface
// consumed by RecSA, RecMA, the Joining Mechanism, and the ABD register.
// Non-blocking: the call returns once the message is queued, not once it
// is delivered.
func (t *Transport) SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error {
	if t.byz != nil && t.byz.Get() == byzantine.DropAll {
		return nil
	}

	t.mu.RLock()
	q, ok := t.queues[to]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown peer %d", to)
	}

	if t.dedup.markPending(to, msg) {
		return nil
	}
	if q.push(msg) && t.met != nil {
		t.met.QueueDrops.WithLabelValues(fmt.Sprint(to)).Inc()
	}
	if t.met != nil {
		t.met.MessagesSent.WithLabelValues(msg.Type.String()).Inc()
	}
	return nil
}

func (t *Transport) senderLoop(ctx context.Context, to types.NodeID, q *boundedQueue) {
	defer t.wg.Done()
	for {
		msg, ok := q.pop(ctx)
		if !ok {
			return
		}
		t.dispatch(ctx, to, msg)
		t.dedup.clearPending(to, msg)
	}
}

func (t *Transport) dispatch(ctx context.Context, to types.NodeID, msg wire.Message) {
	t.mu.RLock()
	rec, ok := t.peers[to]
	t.mu.RUnlock()
	if !ok {
		return
	}

	behavior := byzantine.None
	if t.byz != nil {
		behavior = t.byz.Get()
	}
	switch behavior {
	case byzantine.Delay:
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	case byzantine.Duplicate:
		t.postOnce(ctx, rec, msg)
	}

	t.postOnce(ctx, rec, msg)
}

func (t *Transport) postOnce(ctx context.Context, rec hosts.Record, msg wire.Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		t.log.Error("marshal outbound message", "err", err)
		return
	}
	url := fmt.Sprintf("http://%s:%d%s", rec.IP, rec.Port, DispatchPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.log.Debug("build dispatch request failed", "to", rec.ID, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Debug("dispatch send failed", "to", rec.ID, "err", err)
		return
	}
	_ = resp.Body.Close()
}

// SendToken sends a best-effort heartbeat token to to over UDP,
// implementing fd.TokenSender.
func (t *Transport) SendToken(ctx context.Context, to types.NodeID) error {
	if t.byz != nil && t.byz.Get() == byzantine.DropAll {
		return nil
	}
	t.mu.RLock()
	rec, ok := t.peers[to]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown peer %d", to)
	}
	if t.udpConn == nil {
		return fmt.Errorf("transport: udp socket not initialised")
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", rec.IP, rec.Port))
	if err != nil {
		return fmt.Errorf("transport: resolve %s: %w", rec.IP, err)
	}
	token := tokenPacket{Sender: t.self}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("transport: marshal token: %w", err)
	}
	if _, err := t.udpConn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("transport: send token to %d: %w", to, err)
	}
	return nil
}

type tokenPacket struct {
	Sender types.NodeID `json:"sender"`
}

func (t *Transport) udpReceiveLoop(ctx context.Context) {
	defer t.wg.Done()
	buf := make([]byte, 256)
	go func() {
		<-ctx.Done()
		t.udpConn.Close()
	}()
	for {
		n, _, err := t.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Debug("udp read failed", "err", err)
			continue
		}
		var tok tokenPacket
		if err := json.Unmarshal(buf[:n], &tok); err != nil {
			t.log.Debug("malformed fd token", "err", err)
			continue
		}
		if t.onToken != nil {
			t.onToken(tok.Sender)
		}
	}
}
