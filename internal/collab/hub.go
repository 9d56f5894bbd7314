// Package collab is the live design channel: every connected client sees
// the same design, can submit store operations and shares its cursor.
package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/inamate/tokamak/internal/design"
	"github.com/inamate/tokamak/internal/render"
)

// Engine is the part of the design session the hub drives.
type Engine interface {
	Apply(op design.Operation) (int64, error)
	Snapshot() design.Design
	Scene() (*render.Scene, error)
}

// Hub fans design changes and presence out to every connected client. There
// is one design per process, so there is one room.
type Hub struct {
	engine Engine

	mu       sync.RWMutex
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager

	seqMu     sync.Mutex
	serverSeq int64

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(engine Engine) *Hub {
	return &Hub{
		engine:     engine,
		clients:    make(map[string]*Client),
		presence:   NewPresenceManager(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes joins and leaves until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// Register hands client to the hub. It reports false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, UserID: client.UserID})
	client.Send(&Message{Type: TypeWelcome, Payload: welcome})

	if msg := h.syncMessage(); msg != nil {
		client.Send(msg)
	}

	// Send current presence state to new client
	if stateMsg := h.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}
	h.broadcast(joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "client", client.ClientID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ClientID)
	h.mu.Unlock()
	client.close()

	h.presence.Remove(client.UserID)

	// Broadcast leave to remaining clients
	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	leaveMsg := &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}
	h.broadcast(leaveMsg, "")

	slog.Info("client left", "user", client.UserID, "client", client.ClientID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.SendError("unknown message type " + msg.Type)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	h.presence.Update(sender.UserID, &presence)

	// Broadcast to other clients in room
	outPayload, _ := json.Marshal(presence)
	outMsg := &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}
	h.broadcast(outMsg, sender.ClientID)
}

// BroadcastDesign pushes the current design to every client. The engine
// calls it after each change.
func (h *Hub) BroadcastDesign() {
	if msg := h.syncMessage(); msg != nil {
		h.broadcast(msg, "")
	}
}

func (h *Hub) syncMessage() *Message {
	d := h.engine.Snapshot()
	scene, err := h.engine.Scene()
	if err != nil {
		slog.Error("build scene for sync", "error", err)
		return nil
	}
	payload, err := json.Marshal(DesignSyncPayload{Version: d.Version, Design: d, Scene: scene})
	if err != nil {
		slog.Error("marshal design sync", "error", err)
		return nil
	}
	return &Message{Type: TypeDesignSync, Seq: d.Version, Payload: payload}
}

func (h *Hub) broadcast(msg *Message, excludeClientID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
