package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/metrics"
)

// wsFrame is the JSON protocol on the chat websocket.
//
// Client -> server:
//
//	{"type":"message","kind":"text","payload":"..."}   send a message
//	{"type":"ack"}                                     staff read acknowledgment
//	{"type":"heartbeat"}                               customer presence keepalive
//
// Server -> client:
//
//	{"type":"message","message":{...}}                 a new message in this conversation
//	{"type":"status","status":"connected"}
//	{"type":"error","error":"..."}
type wsFrame struct {
	Type    string          `json:"type"`
	Kind    string          `json:"kind,omitempty"`
	Payload string          `json:"payload,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
	Status  string          `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // behind a reverse proxy in production
	},
}

// wsClient tracks one connected socket. The write mutex serializes pushes
// from the event bus with direct replies on the read loop.
type wsClient struct {
	conn   *websocket.Conn
	convID string
	mu     sync.Mutex
}

func (c *wsClient) send(frame wsFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}

// hub indexes connected clients by conversation.
type hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

func newHub(logger *slog.Logger) *hub {
	return &hub{logger: logger, clients: make(map[string]*wsClient)}
}

func (h *hub) add(id string, c *wsClient) {
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	metrics.ConnectedClients.Inc()
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		metrics.ConnectedClients.Dec()
	}
}

func (h *hub) broadcast(convID string, frame wsFrame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.convID == convID {
			c.send(frame)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.conn.Close()
		delete(h.clients, id)
		metrics.ConnectedClients.Dec()
	}
}

// handleUpgrade accepts a chat client. Query parameters identify the peer:
// conversation (the customer's stable identity, required), role
// (customer|staff, default customer), name (display name shown on messages).
func (w *Web) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	convID := r.URL.Query().Get("conversation")
	if convID == "" {
		http.Error(rw, "conversation query parameter required", http.StatusBadRequest)
		return
	}

	role := domain.RoleCustomer
	if r.URL.Query().Get("role") == string(domain.RoleStaff) {
		// Staff sockets go through the same auth gate as the admin API.
		if !w.staffAuthorized(r) {
			http.Error(rw, "unauthorized", http.StatusUnauthorized)
			return
		}
		role = domain.RoleStaff
	}
	displayName := r.URL.Query().Get("name")

	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, convID: convID}
	clientID := fmt.Sprintf("%s-%p", convID, conn)
	w.hub.add(clientID, client)

	w.logger.Info("chat client connected",
		"client_id", clientID, "conversation", convID, "role", role)

	if role == domain.RoleCustomer {
		w.presence.Connected(r.Context(), convID)
	}

	client.send(wsFrame{Type: "status", Status: "connected"})

	defer func() {
		w.hub.remove(clientID)
		conn.Close()
		if role == domain.RoleCustomer {
			// A fresh context: the request context is done once we return.
			disCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.presence.Disconnected(disCtx, convID)
			cancel()
		}
		w.logger.Info("chat client disconnected", "client_id", clientID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Error("websocket read error", "err", err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			w.logger.Warn("invalid websocket frame", "err", err)
			client.send(wsFrame{Type: "error", Error: "invalid frame"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		w.handleFrame(ctx, client, frame, convID, role, displayName)
		cancel()
	}
}

func (w *Web) handleFrame(ctx context.Context, client *wsClient, frame wsFrame, convID string, role domain.AuthorRole, displayName string) {
	switch frame.Type {
	case "message":
		kind := domain.KindText
		if frame.Kind == string(domain.KindAttachment) {
			kind = domain.KindAttachment
		}
		if strings.TrimSpace(frame.Payload) == "" {
			client.send(wsFrame{Type: "error", Error: "empty payload"})
			return
		}

		stored, err := w.store.AppendMessage(ctx, convID, domain.Message{
			AuthorRole:        role,
			Kind:              kind,
			Payload:           frame.Payload,
			AuthorDisplayName: displayName,
		})
		if err != nil {
			w.logger.Error("message append failed", "conversation", convID, "err", err)
			client.send(wsFrame{Type: "error", Error: "message not stored"})
			return
		}

		// The message is durable at this point; the metadata patch follows
		// and a patch failure never unwinds the append.
		if role == domain.RoleCustomer {
			err = w.sync.CustomerMessage(ctx, stored)
		} else {
			err = w.sync.StaffMessage(ctx, stored)
		}
		if err != nil {
			w.logger.Warn("metadata patch failed after send",
				"conversation", convID, "message", stored.ID, "err", err)
		}

	case "ack":
		if role != domain.RoleStaff {
			client.send(wsFrame{Type: "error", Error: "ack is staff-only"})
			return
		}
		if err := w.sync.AcknowledgeStaffRead(ctx, convID); err != nil {
			w.logger.Warn("read acknowledgment failed", "conversation", convID, "err", err)
		}

	case "heartbeat":
		if role == domain.RoleCustomer {
			w.presence.Heartbeat(convID)
		}

	default:
		client.send(wsFrame{Type: "error", Error: "unknown frame type"})
	}
}

// staffAuthorized applies the admin token to a websocket upgrade request.
// Browsers cannot set headers on upgrades, so the token query parameter is
// accepted as well.
func (w *Web) staffAuthorized(r *http.Request) bool {
	if w.authToken == "" {
		return true
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if got == "" {
		got = r.URL.Query().Get("token")
	}
	return got == w.authToken
}
