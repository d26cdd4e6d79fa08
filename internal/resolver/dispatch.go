package resolver

import (
	"context"
	"fmt"

	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

// DispatchMessage routes an inbound wire.Message to the owning module's
// receive_msg, by MessageType (spec.md §4.5).
func (r *Resolver) DispatchMessage(ctx context.Context, msg wire.Message) error {
	switch msg.Type {
	case wire.RecsaMessage:
		var p wire.RecsaPayload
		if err := wire.Decode(msg, &p); err != nil {
			return err
		}
		r.RecSA.ReceiveMsg(msg.Sender, p)

	case wire.RecmaMessage:
		var p wire.RecmaPayload
		if err := wire.Decode(msg, &p); err != nil {
			return err
		}
		r.RecMA.ReceiveMsg(msg.Sender, p)

	case wire.JoiningMechanismMessage:
		var req wire.JoinRequest
		if err := wire.Decode(msg, &req); err == nil && req.Join {
			r.Joining.ReceiveJoinRequest(ctx, msg.Sender, wire.JoinResponse{State: r.ABD.CurrentValue()})
			return nil
		}
		var resp wire.JoinResponse
		if err := wire.Decode(msg, &resp); err != nil {
			return fmt.Errorf("resolver: decode joining message: %w", err)
		}
		r.Joining.ReceiveResponse(msg.Sender, resp)

	case wire.ABDMessage:
		var p wire.ABDPayload
		if err := wire.Decode(msg, &p); err != nil {
			return err
		}
		r.ABD.ReceiveMsg(ctx, msg.Sender, p)

	case wire.FailureDetectorMessage:
		r.FD.ReceiveToken(msg.Sender)

	default:
		r.log.Debug("dropped message with unknown type", "type", msg.Type, "sender", msg.Sender)
	}
	return nil
}
