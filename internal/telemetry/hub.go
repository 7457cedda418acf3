// Package telemetry streams consolidation events to WebSocket subscribers.
// The hub implements the engine's EventSink, so every completed cycle is
// broadcast to whoever is watching.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/memtier/memtier/pkg/types"
)

// Hub manages WebSocket subscribers and broadcasts consolidation events.
type Hub struct {
	clients    map[clientInterface]bool
	broadcast  chan interface{}
	register   chan clientInterface
	unregister chan clientInterface
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// clientInterface allows for both real connections and mock clients.
type clientInterface interface {
	getSendChannel() chan []byte
	close()
}

// subscriber is one live WebSocket connection.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

func (s *subscriber) getSendChannel() chan []byte {
	return s.send
}

func (s *subscriber) close() {
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// NewHub creates a telemetry hub. Call Run on its own goroutine before
// accepting connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[clientInterface]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan clientInterface),
		unregister: make(chan clientInterface),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Publish implements the engine's EventSink: the cycle event is broadcast
// to every subscriber. Telemetry is lossy by contract; a full channel drops
// the event rather than blocking a consolidation cycle.
func (h *Hub) Publish(event types.ConsolidationEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("WARNING: telemetry broadcast channel full, dropping event")
	}
}

// Run starts the hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("telemetry: subscriber connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("telemetry: subscriber disconnected (total: %d)", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("ERROR: failed to marshal telemetry event: %v", err)
				h.mu.Unlock()
				continue
			}
			for client := range h.clients {
				sendChan := client.getSendChannel()
				select {
				case sendChan <- data:
				default:
					// Slow subscriber: disconnect instead of blocking.
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("telemetry: hub stopping")
			return
		}
	}
}

// Stop gracefully shuts down the hub and every subscriber.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[clientInterface]bool)
	h.mu.Unlock()
}

// Register adds a subscriber to the hub.
func (h *Hub) Register(client clientInterface) {
	h.register <- client
}

// Unregister removes a subscriber from the hub.
func (h *Hub) Unregister(client clientInterface) {
	h.unregister <- client
}

// ServeHTTP handles WebSocket upgrade requests for the event stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		log.Printf("ERROR: WebSocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.Register(sub)

	go sub.writePump()
	go sub.readPump()
}

// writePump sends queued events to the connection.
func (s *subscriber) writePump() {
	defer func() {
		s.hub.Unregister(s)
		_ = s.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for message := range s.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			log.Printf("ERROR: telemetry write failed: %v", err)
			return
		}
	}
}

// readPump drains inbound messages to detect disconnection.
func (s *subscriber) readPump() {
	defer func() {
		s.hub.Unregister(s)
		_ = s.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for {
		if _, _, err := s.conn.Read(context.Background()); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}

// MockClient is a mock subscriber for testing.
type MockClient struct {
	SendChan chan []byte
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) close() {}
