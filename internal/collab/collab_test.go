package collab

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/engine"
)

func startHub(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	eng := engine.New(design.NewStore(), engine.Config{})
	hub := NewHub(eng)
	eng.OnChange(hub.BroadcastDesign)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHandler(hub, nil, nil))
	t.Cleanup(srv.Close)
	return srv, eng
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// next reads messages until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) *Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err, "waiting for %s", typ)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == typ {
			return &msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Message{Type: typ, Payload: raw})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestConnectReceivesDesign(t *testing.T) {
	srv, _ := startHub(t)
	conn := dial(t, srv)

	welcome := next(t, conn, TypeWelcome)
	var w WelcomePayload
	require.NoError(t, json.Unmarshal(welcome.Payload, &w))
	assert.NotEmpty(t, w.ClientID)
	assert.True(t, strings.HasPrefix(w.UserID, "anon-"))

	sync := next(t, conn, TypeDesignSync)
	var p DesignSyncPayload
	require.NoError(t, json.Unmarshal(sync.Payload, &p))
	assert.Len(t, p.Design.Coils, 8)
	require.NotNil(t, p.Scene)
	assert.Len(t, p.Scene.Traces, 5)
}

func TestOpSubmit(t *testing.T) {
	srv, eng := startHub(t)
	a := dial(t, srv)
	next(t, a, TypeDesignSync)
	b := dial(t, srv)
	next(t, b, TypeDesignSync)

	send(t, a, TypeOpSubmit, OperationSubmitPayload{Operation: design.Operation{ID: "op-1", Type: design.OpCoilRemoveLast}})

	ack := next(t, a, TypeOpAck)
	var ap OperationAckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &ap))
	assert.Equal(t, "op-1", ap.OperationID)
	assert.Equal(t, int64(1), ap.ServerSeq)
	assert.Len(t, eng.Snapshot().Coils, 7)

	sync := next(t, b, TypeDesignSync)
	var sp DesignSyncPayload
	require.NoError(t, json.Unmarshal(sync.Payload, &sp))
	assert.Len(t, sp.Design.Coils, 7)
	bc := next(t, b, TypeOpBroadcast)
	var bp OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(bc.Payload, &bp))
	assert.Equal(t, design.OpCoilRemoveLast, bp.Operation.Type)

	t.Run("rejected operations are nacked", func(t *testing.T) {
		send(t, a, TypeOpSubmit, OperationSubmitPayload{Operation: design.Operation{ID: "op-2", Type: design.OpPointSet}})
		nack := next(t, a, TypeOpNack)
		var np OperationNackPayload
		require.NoError(t, json.Unmarshal(nack.Payload, &np))
		assert.Equal(t, "op-2", np.OperationID)
		assert.Contains(t, np.Reason, "malformed")
	})
}

func TestPresence(t *testing.T) {
	srv, _ := startHub(t)
	a := dial(t, srv)
	next(t, a, TypePresenceState)

	b := dial(t, srv)
	join := next(t, a, TypePresenceJoin)
	var jp PresenceJoinPayload
	require.NoError(t, json.Unmarshal(join.Payload, &jp))
	assert.Equal(t, "Anonymous", jp.DisplayName)

	send(t, b, TypePresenceUpdate, PresencePayload{Cursor: &CursorPos{R: 4.2, Z: -1.1}})
	upd := next(t, a, TypePresenceUpdate)
	var pp PresencePayload
	require.NoError(t, json.Unmarshal(upd.Payload, &pp))
	require.NotNil(t, pp.Cursor)
	assert.Equal(t, 4.2, pp.Cursor.R)
	assert.Equal(t, jp.UserID, upd.UserID)

	b.Close(websocket.StatusNormalClosure, "")
	leave := next(t, a, TypePresenceLeave)
	assert.Equal(t, jp.UserID, leave.UserID)
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:5173", "example.org"},
		OriginPatterns([]string{"http://localhost:5173", " https://example.org ", ""}))
}
