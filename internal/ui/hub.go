package ui

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lowaak/lux-logger/internal/go_func_utils"
	"github.com/lowaak/lux-logger/internal/sensor"
)

// ConnectRequester is the single action a presentation client may ask of the
// core. Implemented by link.Session.
type ConnectRequester interface {
	Connect()
}

// Hub serves the websocket presentation interface: it pushes model state to
// every connected client and consumes the small request vocabulary. A new
// client immediately receives the full current state, so it never has to
// wait for the next change.
type Hub struct {
	mu sync.Mutex
	// Gorilla connections allow one writer at a time; the per-client mutex
	// serializes the initial push against broadcasts.
	clients map[*websocket.Conn]*sync.Mutex

	model     *sensor.Model
	requester ConnectRequester
	server    *http.Server
	upgrader  websocket.Upgrader
	logger    *log.Logger
}

func NewHub(model *sensor.Model, requester ConnectRequester, logger *log.Logger) *Hub {
	if model == nil {
		panic("Hub: model cannot be nil")
	}
	if requester == nil {
		panic("Hub: requester cannot be nil")
	}
	if logger == nil {
		panic("Hub: logger cannot be nil")
	}
	return &Hub{
		clients:   make(map[*websocket.Conn]*sync.Mutex),
		model:     model,
		requester: requester,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Start begins serving websocket clients on addr (for example ":8090")
func (h *Hub) Start(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.server = &http.Server{Addr: addr, Handler: mux}

	go_func_utils.SafeGo(h.logger, func() {
		h.logger.Printf("Hub: listening on %s", addr)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Printf("Hub: server error: %v", err)
		}
	})
}

func (h *Hub) Shutdown() {
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Printf("Hub: shutdown error: %v", err)
		}
	}

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()
}

// ClientCount returns the number of attached clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Hub: upgrade failed: %v", err)
		return
	}

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = writeMu
	h.mu.Unlock()
	h.logger.Printf("Hub: client attached from %s", conn.RemoteAddr())

	h.pushCurrentState(conn, writeMu)

	go_func_utils.SafeGo(h.logger, func() {
		h.readLoop(conn)
	})
}

// pushCurrentState sends the full model state to a single client
func (h *Hub) pushCurrentState(conn *websocket.Conn, writeMu *sync.Mutex) {
	info := h.model.Connection()
	messages := []Message{
		{Type: MsgBLEConnection, Payload: info.Connected},
		{Type: MsgSensorData, Payload: h.model.Readings()},
		{Type: MsgUpdateStats, Payload: h.model.Stats()},
		{Type: MsgStorageStats, Payload: h.model.StorageStats()},
		{Type: MsgTimeRangeStats, Payload: h.model.TimeRangeStats()},
	}
	for _, msg := range messages {
		writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		err := conn.WriteJSON(msg)
		writeMu.Unlock()
		if err != nil {
			h.logger.Printf("Hub: initial push failed: %v", err)
			h.removeClient(conn)
			return
		}
	}
}

// readLoop consumes client requests until the connection dies
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		req, err := DecodeRequest(raw)
		if err != nil {
			h.logger.Printf("Hub: bad request frame: %v", err)
			continue
		}

		switch req.Type {
		case ReqConnect:
			h.logger.Printf("Hub: connect requested by %s", conn.RemoteAddr())
			h.requester.Connect()
		case ReqLog:
			// Accepted for client-side diagnostics, logged and dropped
			h.logger.Printf("Hub: client log: %s", req.Text)
		default:
			h.logger.Printf("Hub: unknown request type %q", req.Type)
		}
	}
}

// Broadcast pushes one message to every attached client. Clients that fail
// the write are detached.
func (h *Hub) Broadcast(msg Message) {
	type client struct {
		conn    *websocket.Conn
		writeMu *sync.Mutex
	}
	h.mu.Lock()
	clients := make([]client, 0, len(h.clients))
	for conn, writeMu := range h.clients {
		clients = append(clients, client{conn: conn, writeMu: writeMu})
	}
	h.mu.Unlock()

	var failed []*websocket.Conn
	for _, c := range clients {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		err := c.conn.WriteJSON(msg)
		c.writeMu.Unlock()
		if err != nil {
			failed = append(failed, c.conn)
		}
	}

	for _, conn := range failed {
		h.logger.Printf("Hub: dropping unresponsive client %s", conn.RemoteAddr())
		h.removeClient(conn)
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Addr returns the configured listen address
func (h *Hub) Addr() string {
	if h.server == nil {
		return ""
	}
	return fmt.Sprintf("ws://localhost%s/ws", h.server.Addr)
}
