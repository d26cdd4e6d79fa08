package recsa

import (
	"context"

	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// ReceiveMsg absorbs a RECSA_MESSAGE from sender. It takes the module
// lock itself, so callers must not hold it.
func (m *Module) ReceiveMsg(sender types.NodeID, p wire.RecsaPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fdOf[sender] = p.FD
	m.fdPartOf[sender] = p.FDPart
	m.config[sender] = p.Config
	m.prp[sender] = p.Prp
	m.all[sender] = p.All
	m.echoPart[sender] = p.EchoFDPart
	m.echoPrp[sender] = p.EchoPrp
	m.echoAll[sender] = p.EchoAll
}

// sendState sends this processor's current view, echoing back its record
// of j's own state so j can detect whether its last report has propagated
// (spec.md §4.2's echo mechanism). Must be called with m.mu held.
func (m *Module) sendState(ctx context.Context, j types.NodeID) {
	payload := wire.RecsaPayload{
		FD:         m.getFDJ(m.self),
		FDPart:     m.getFDPartJ(m.self),
		Config:     m.getConfigJ(m.self),
		Prp:        m.getPrpJ(m.self),
		All:        m.myAll(m.self),
		EchoFDPart: m.getFDPartJ(j),
		EchoPrp:    m.getPrpJ(j),
		EchoAll:    m.getAllJ(j),
	}
	msg, err := wire.Encode(wire.RecsaMessage, m.self, payload)
	if err != nil {
		m.log.Error("encode recsa state", "to", j, "err", err)
		return
	}
	if err := m.tr.SendToNode(ctx, j, msg); err != nil {
		m.log.Debug("send recsa state failed", "to", j, "err", err)
	}
}
