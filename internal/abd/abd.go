// Package abd implements a single-writer/multi-reader atomic register
// (ABD-style) as the canonical application consuming RecSA's chosen
// configuration (spec.md §6.2, §9's busy-wait design note).
package abd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// ConfigAppView is the slice of RecSA the register consumes: the quorum
// set it must contact, re-read on every operation per spec.md §6.2.
type ConfigAppView interface {
	GetConfigApp() types.Set
}

// Transport delivers an ABD protocol message to a peer.
type Transport interface {
	SendToNode(ctx context.Context, to types.NodeID, msg wire.Message) error
}

type observation struct {
	label int
	value json.RawMessage
}

// Module is one processor's register replica.
type Module struct {
	self     types.NodeID
	isWriter bool
	config   ConfigAppView
	tr       Transport
	log      *slog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	label int
	value json.RawMessage

	communicating bool
	round         wire.ABDMessageType
	status        map[types.NodeID]types.AckStatus
	info          map[types.NodeID]observation
	noAcks        int

	cache Cache
}

// SetCache attaches a read-through cache consulted by CachedRead. Optional;
// a nil cache (the default) means CachedRead always falls back to Read.
func (m *Module) SetCache(c Cache) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = c
}

// CachedRead serves the fast, non-linearizable path behind GET
// /abd/read?consistency=cached: a cache hit returns immediately without
// contacting the quorum. A miss, a cache error, or no cache configured
// falls back to the full Read and writes the result through.
func (m *Module) CachedRead(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	cache := m.cache
	m.mu.Unlock()

	if cache != nil {
		if _, value, err := cache.Get(ctx); err == nil {
			return value, nil
		}
	}

	value, err := m.Read(ctx)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		m.mu.Lock()
		label := m.label
		m.mu.Unlock()
		if err := cache.Set(ctx, label, value); err != nil {
			m.log.Debug("cache write-through failed", "err", err)
		}
	}
	return value, nil
}

// New constructs a register replica. isWriter marks the single processor
// permitted to call Write.
func New(self types.NodeID, isWriter bool, config ConfigAppView, tr Transport, logger *slog.Logger) *Module {
	m := &Module{
		self:     self,
		isWriter: isWriter,
		config:   config,
		tr:       tr,
		log:      logger.With("module", "abd", "node", self),
		label:    types.Bot,
		status:   make(map[types.NodeID]types.AckStatus),
		info:     make(map[types.NodeID]observation),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Read performs the two-round ABD read: a READ_REQUEST round to find the
// highest label any replica has seen, then a READ_CONFIRM round that
// writes that value back so a concurrent reader cannot observe it
// regress (spec.md §6.2).
func (m *Module) Read(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.communicateLocked(ctx, wire.ReadRequest, m.label, nil); err != nil {
		return nil, err
	}

	maxLabel, maxValue := m.label, m.value
	for _, obs := range m.info {
		if obs.label > maxLabel {
			maxLabel, maxValue = obs.label, obs.value
		}
	}

	if err := m.communicateLocked(ctx, wire.ReadConfirm, maxLabel, maxValue); err != nil {
		return nil, err
	}
	if maxLabel > m.label {
		m.label, m.value = maxLabel, maxValue
	}
	return m.value, nil
}

// Write performs the single-round ABD write: increment the label and
// broadcast until a majority acknowledges (spec.md §6.2). Only isWriter
// should call this; the caller enforces that via the HTTP layer.
func (m *Module) Write(ctx context.Context, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.label++
	m.value = value
	label, cache := m.label, m.cache
	if err := m.communicateLocked(ctx, wire.Write, m.label, value); err != nil {
		return err
	}
	if cache != nil {
		if err := cache.Set(ctx, label, value); err != nil {
			m.log.Debug("cache write-through failed", "err", err)
		}
	}
	return nil
}

// communicateLocked broadcasts msgType to every member of the current
// quorum and blocks, without busy-waiting, until a majority has
// acknowledged or ctx is cancelled. Must be called with m.mu held; it is
// re-entered safely because sync.Cond.Wait releases the lock while
// parked. Replaces the original's `while no_acks < quorum: sleep(1)`
// polling loop per spec.md §9's design note.
func (m *Module) communicateLocked(ctx context.Context, msgType wire.ABDMessageType, label int, value json.RawMessage) error {
	quorum := m.config.GetConfigApp()
	// ceil((|quorum|+1)/2), spec.md §5's backpressure rule.
	need := (len(quorum) + 2) / 2

	m.communicating = true
	m.round = msgType
	m.status = make(map[types.NodeID]types.AckStatus, len(quorum))
	m.noAcks = 0
	if msgType == wire.ReadRequest {
		m.info = make(map[types.NodeID]observation)
	}
	for id := range quorum {
		m.status[id] = types.NotAcked
	}
	// A processor always trusts its own local copy.
	if quorum.Contains(m.self) {
		m.status[m.self] = types.Acked
		m.noAcks++
		m.info[m.self] = observation{label: m.label, value: m.value}
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		case <-stop:
		}
	}()
	defer close(stop)

	for id := range quorum {
		if id == m.self {
			continue
		}
		m.sendLocked(ctx, id, msgType, label, value)
	}

	for m.noAcks < need {
		if err := ctx.Err(); err != nil {
			m.communicating = false
			return fmt.Errorf("abd: communicate %s: %w", msgType, err)
		}
		m.cond.Wait()
	}
	m.communicating = false
	return nil
}

func (m *Module) sendLocked(ctx context.Context, to types.NodeID, msgType wire.ABDMessageType, label int, value json.RawMessage) {
	payload := wire.ABDPayload{Type: msgType, Label: label, Value: value}
	msg, err := wire.Encode(wire.ABDMessage, m.self, payload)
	if err != nil {
		m.log.Error("encode abd message", "to", to, "type", msgType, "err", err)
		return
	}
	if err := m.tr.SendToNode(ctx, to, msg); err != nil {
		m.log.Debug("send abd message failed", "to", to, "type", msgType, "err", err)
	}
}

// ReceiveMsg absorbs an ABD protocol message from sender.
func (m *Module) ReceiveMsg(ctx context.Context, sender types.NodeID, p wire.ABDPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch p.Type {
	case wire.Write:
		if p.Label > m.label {
			m.label, m.value = p.Label, p.Value
		}
		m.sendLocked(ctx, sender, wire.WriteAck, m.label, nil)

	case wire.WriteAck:
		m.ackLocked(sender, wire.Write)

	case wire.ReadRequest:
		m.sendLocked(ctx, sender, wire.ReadRequestAck, m.label, m.value)

	case wire.ReadRequestAck:
		if m.communicating && m.round == wire.ReadRequest {
			m.info[sender] = observation{label: p.Label, value: p.Value}
			m.ackLocked(sender, wire.ReadRequest)
		}

	case wire.ReadConfirm:
		if p.Label > m.label {
			m.label, m.value = p.Label, p.Value
		}
		m.sendLocked(ctx, sender, wire.ReadConfirmAck, m.label, nil)

	case wire.ReadConfirmAck:
		m.ackLocked(sender, wire.ReadConfirm)

	default:
		m.log.Debug("unknown abd message type", "type", p.Type, "sender", sender)
	}
}

func (m *Module) ackLocked(sender types.NodeID, expected wire.ABDMessageType) {
	if !m.communicating || m.round != expected {
		return
	}
	if m.status[sender] == types.Acked {
		return
	}
	m.status[sender] = types.Acked
	m.noAcks++
	m.cond.Broadcast()
}

// IsWriter reports whether this replica is the one processor permitted to
// call Write, for the HTTP layer to enforce before routing POST
// /abd/write here.
func (m *Module) IsWriter() bool {
	return m.isWriter
}

// CurrentValue returns this replica's last-known register value without
// contacting the quorum, for bootstrapping a newly admitted joiner's
// application state (spec.md §4.4's {pass, state} response).
func (m *Module) CurrentValue() json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// GetData exposes the module's state for the /data introspection endpoint.
func (m *Module) GetData() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"is_writer": m.isWriter,
		"value":     m.value,
		"label":     m.label,
		"status":    copyStatus(m.status),
	}
}

func copyStatus(in map[types.NodeID]types.AckStatus) map[types.NodeID]types.AckStatus {
	out := make(map[types.NodeID]types.AckStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
