package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/blink"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingEvery   = 30 * time.Second
	hubBacklog  = 64
	readLimitWS = 1 << 10
)

// BlinkHub pushes blink updates to every connected WebSocket client.
// It implements app.Sink; Publish never blocks the frame path.
type BlinkHub struct {
	snapshot func() blink.Snapshot
	logger   *zap.Logger
	upgrader websocket.Upgrader
	messages chan app.Update

	mu      sync.Mutex
	clients map[*websocket.Conn]*wsClient
	dropped uint64
}

// wsClient serializes writes to one connection. Updates counting fewer
// blinks than the snapshot the client started from are skipped.
type wsClient struct {
	mu    sync.Mutex
	floor uint64
}

// NewBlinkHub creates a hub. snapshot, when non-nil, supplies the state sent
// to each client as it connects.
func NewBlinkHub(snapshot func() blink.Snapshot, logger *zap.Logger) *BlinkHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlinkHub{
		snapshot: snapshot,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow local connections
			},
		},
		messages: make(chan app.Update, hubBacklog),
		clients:  make(map[*websocket.Conn]*wsClient),
	}
}

// Publish queues u for broadcast. When the backlog is full the update is
// dropped; the next update carries the current count anyway.
func (h *BlinkHub) Publish(u app.Update) {
	select {
	case h.messages <- u:
	default:
		h.mu.Lock()
		h.dropped++
		dropped := h.dropped
		h.mu.Unlock()
		h.logger.Warn("blink update dropped", zap.Uint64("dropped", dropped))
	}
}

// Run broadcasts queued updates until ctx is cancelled, then closes all clients.
func (h *BlinkHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case u := <-h.messages:
			h.broadcast(u)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *BlinkHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *BlinkHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(readLimitWS)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Register with the write lock held so broadcasts queue behind the
	// snapshot instead of overtaking it.
	client := &wsClient{}
	client.mu.Lock()
	h.mu.Lock()
	h.clients[conn] = client
	h.mu.Unlock()
	if h.snapshot != nil {
		snap := h.snapshot()
		client.floor = snap.Count
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(app.Update{
			Count:      snap.Count,
			State:      snap.State,
			Calibrated: snap.Calibrated,
			Timestamp:  time.Now(),
		})
	}
	client.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writeMessage(conn, client, websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()
	defer close(done)
	defer h.removeClient(conn)

	// Clients only read; drain control frames until the connection drops.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *BlinkHub) broadcast(u app.Update) {
	var stale []*websocket.Conn

	h.mu.Lock()
	for conn, client := range h.clients {
		if err := writeUpdate(conn, client, u); err != nil {
			stale = append(stale, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range stale {
		h.removeClient(conn)
	}
}

func (h *BlinkHub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (h *BlinkHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func writeUpdate(conn *websocket.Conn, client *wsClient, u app.Update) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	if u.Count < client.floor {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(u)
}

func writeMessage(conn *websocket.Conn, client *wsClient, messageType int, payload []byte) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
