package collab

import (
	"encoding/json"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/editor"
	"github.com/inamate/tokamak/internal/render"
)

type Message struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos     `json:"cursor,omitempty"`
	Target      *editor.Target `json:"target,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
}

// CursorPos is a pointer position in the poloidal plane, in metres.
type CursorPos struct {
	R float64 `json:"r"`
	Z float64 `json:"z"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Design sync
	TypeDesignSync = "design.sync"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// DesignSyncPayload carries the full design and its rendered scene. It is
// sent on connect and after every change, whoever made it.
type DesignSyncPayload struct {
	Version int64         `json:"version"`
	Design  design.Design `json:"design"`
	Scene   *render.Scene `json:"scene"`
}

// OperationSubmitPayload is the payload for op.submit messages
type OperationSubmitPayload struct {
	Operation design.Operation `json:"operation"`
}

// OperationAckPayload is the payload for op.ack messages
type OperationAckPayload struct {
	OperationID     string `json:"operationId"`
	ServerSeq       int64  `json:"serverSeq"`
	Version         int64  `json:"version"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

// OperationNackPayload is the payload for op.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload is the payload for op.broadcast messages
type OperationBroadcastPayload struct {
	Operation design.Operation `json:"operation"`
	UserID    string           `json:"userId"`
	ServerSeq int64            `json:"serverSeq"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
