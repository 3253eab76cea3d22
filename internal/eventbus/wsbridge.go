package eventbus

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nifi-agent/engine/internal/logger"
)

// WebSocketBridge fans bus events out to connected browser-side listeners,
// reusing gorilla/websocket the way the teacher's gateway/dashboard surface
// does for its own push channel — this is an optional transport layered on
// top of Bus, never a requirement for the engine itself to function.
type WebSocketBridge struct {
	bus      *Bus
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	subToken int
}

func NewWebSocketBridge(bus *Bus) *WebSocketBridge {
	b := &WebSocketBridge{
		bus:      bus,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:    make(map[*websocket.Conn]struct{}),
	}
	b.subToken = bus.Subscribe(b.broadcast)
	return b
}

// ServeHTTP upgrades the request to a websocket and registers it as a
// listener until it disconnects.
func (b *WebSocketBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("eventbus", "websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()

	go b.readUntilClosed(conn)
}

// readUntilClosed blocks on reads purely to detect disconnection (this
// bridge is push-only); once the peer closes, the connection is dropped.
func (b *WebSocketBridge) readUntilClosed(conn *websocket.Conn) {
	defer b.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *WebSocketBridge) drop(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
	conn.Close()
}

func (b *WebSocketBridge) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(b.conns, conn)
		}
	}
}

// Close unsubscribes from the bus and closes every connection.
func (b *WebSocketBridge) Close() {
	b.bus.Unsubscribe(b.subToken)
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		conn.Close()
	}
	b.conns = make(map[*websocket.Conn]struct{})
}
