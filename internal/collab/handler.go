package collab

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// TokenValidator resolves an operator token to the operator name.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Handler upgrades requests to the live design channel.
type Handler struct {
	hub            *Hub
	tokens         TokenValidator
	originPatterns []string
}

// NewHandler creates the WebSocket endpoint. tokens may be nil, in which
// case every client joins anonymously. allowedOrigins are full origins such
// as "http://localhost:5173".
func NewHandler(hub *Hub, tokens TokenValidator, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, tokens: tokens, originPatterns: OriginPatterns(allowedOrigins)}
}

// OriginPatterns strips the scheme from each origin, which is the form the
// websocket origin check matches against.
func OriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := "anon-" + uuid.New().String()[:8]
	displayName := "Anonymous"

	// Operators identify with a token query param; anyone else may watch and
	// edit the open design anonymously.
	if token := r.URL.Query().Get("token"); token != "" && h.tokens != nil {
		operator, err := h.tokens.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = operator
		displayName = operator
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.hub, conn, userID, displayName, clientID)

	if !h.hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
