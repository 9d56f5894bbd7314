package collab

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/inamate/tokamak/internal/typeid"
)

// handleOpSubmit applies a client operation to the design. The sender gets
// an ack or a nack; everyone else gets the operation and, through the
// engine's change hook, a fresh design.sync.
func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var payload OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("invalid op payload", "error", err, "user", sender.UserID)
		sender.sendNack("", "invalid payload: "+err.Error())
		return
	}

	op := payload.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}

	version, err := h.engine.Apply(op)
	if err != nil {
		slog.Warn("operation rejected", "op", op.ID, "type", op.Type, "user", sender.UserID, "error", err)
		sender.sendNack(op.ID, err.Error())
		return
	}

	h.seqMu.Lock()
	h.serverSeq++
	seq := h.serverSeq
	h.seqMu.Unlock()

	ack, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       seq,
		Version:         version,
		ServerTimestamp: time.Now().UnixMilli(),
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: seq, Payload: ack})

	out, _ := json.Marshal(OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: seq,
	})
	h.broadcast(&Message{Type: TypeOpBroadcast, UserID: sender.UserID, Seq: seq, Payload: out}, sender.ClientID)
}

func (c *Client) sendNack(opID, reason string) {
	payload, _ := json.Marshal(OperationNackPayload{OperationID: opID, Reason: reason})
	c.Send(&Message{Type: TypeOpNack, Payload: payload})
}
