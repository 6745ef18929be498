// Package websocket delivers hot-module-reload notifications to connected
// browsers. A central hub goroutine owns the client set; registration,
// disconnection, and broadcasting all flow through channels so no handler
// ever blocks on a slow client.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/types"
)

const (
	// sendBuffer bounds the per-client outbound queue; a client that falls
	// this far behind is disconnected rather than throttling everyone else.
	sendBuffer = 256
	// readIdleTimeout disconnects clients that stop sending keepalives.
	readIdleTimeout = 60 * time.Second
	// pingInterval keeps intermediaries from reaping quiet connections.
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// OriginValidator decides whether a connection's Origin header is acceptable.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// Hub fans notification messages out to every connected client.
//
// Invariants:
//   - clients map access is always protected by clientsMutex
//   - the hub goroutine and Shutdown are the only writers of the clients map
//   - shutdown transitions exactly once; late broadcasts are dropped
type Hub struct {
	clients      map[string]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
}

// NewHub creates a hub and starts its goroutine. The origin validator is
// required; connections with a disallowed Origin header are refused before
// the protocol upgrade.
func NewHub(originValidator OriginValidator, logger logging.Logger) *Hub {
	if originValidator == nil {
		panic("websocket: originValidator cannot be nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:         make(map[string]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *Client, 32),
		originValidator: originValidator,
		logger:          logger.WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
	}

	go h.run()
	return h
}

// HandleWebSocket upgrades the request and registers the client with the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && !h.originValidator.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "websocket connection rejected, origin not allowed",
			"origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The Origin header was already checked against the configured list.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	default:
		conn.Close(websocket.StatusTryAgainLater, "server busy")
		return
	}

	go h.serveClient(client)
	h.logger.Debug(r.Context(), "websocket client connected",
		"client", client.id, "remote", r.RemoteAddr)
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.clientsMutex.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.clientsMutex.Unlock()

	h.logger.Debug(context.Background(), "client registered", "client", client.id, "total", total)
}

func (h *Hub) removeClient(client *Client) {
	h.clientsMutex.Lock()
	_, exists := h.clients[client.id]
	if exists {
		delete(h.clients, client.id)
		close(client.send)
	}
	total := len(h.clients)
	h.clientsMutex.Unlock()

	if exists {
		client.conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(context.Background(), "client disconnected", "client", client.id, "total", total)
	}
}

func (h *Hub) broadcastToClients(message []byte) {
	h.clientsMutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// The client stopped draining its queue; drop it instead of
			// letting one stalled tab delay updates for every other client.
			go h.requestUnregister(client)
		}
	}
}

// requestUnregister hands a client to the hub goroutine for removal. Removal
// is idempotent, so every exit path may request it independently.
func (h *Hub) requestUnregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) serveClient(client *Client) {
	defer h.requestUnregister(client)

	go h.writePump(client)
	h.readPump(client)
}

// readPump consumes keepalive messages from the client. Each received
// message resets the idle deadline; a quiet client times out.
func (h *Hub) readPump(client *Client) {
	for {
		ctx, cancel := context.WithTimeout(h.ctx, readIdleTimeout)
		_, message, err := client.conn.Read(ctx)
		cancel()

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && h.ctx.Err() == nil {
				h.logger.Debug(context.Background(), "websocket read ended",
					"client", client.id, "reason", err.Error())
			}
			return
		}

		h.logger.Debug(context.Background(), "client message received",
			"client", client.id, "bytes", len(message))
	}
}

// writePump drains the client's send queue and keeps the connection alive
// with periodic pings. A write or ping failure requests removal, so a dead
// connection is reaped within one ping interval even when the read side has
// already given up.
func (h *Hub) writePump(client *Client) {
	defer h.requestUnregister(client)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// SendReload broadcasts one reload notification.
func (h *Hub) SendReload(ev types.ReloadEvent) {
	h.broadcastJSON(ReloadMessage{
		Type:      string(ev.Action),
		Path:      ev.Path,
		Index:     ev.Index,
		Timestamp: ev.Timestamp.UnixMilli(),
	})
}

// SendCompileError tells clients to show the error overlay for a file.
func (h *Hub) SendCompileError(path string, diagnostics []errors.Diagnostic) {
	h.broadcastJSON(CompileErrorMessage{
		Type:        "compile-error",
		Path:        path,
		Diagnostics: diagnostics,
	})
}

// ClearCompileError tells clients to dismiss the error overlay for a file.
func (h *Hub) ClearCompileError(path string) {
	h.broadcastJSON(CompileErrorMessage{
		Type: "compile-error-resolved",
		Path: path,
	})
}

func (h *Hub) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(context.Background(), err, "cannot marshal notification")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(context.Background(), nil, "broadcast queue full, dropping notification")
	}
}

// GetConnectedClients returns the number of connected clients.
func (h *Hub) GetConnectedClients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client connection and stops the hub. It is safe to
// call more than once.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.isShutdown.Store(true)
		// Canceling the context stops the hub goroutine and both pumps;
		// send channels are left to the garbage collector because the hub
		// goroutine may still be broadcasting into them.
		h.cancel()

		h.clientsMutex.Lock()
		for _, client := range h.clients {
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
		h.clients = make(map[string]*Client)
		h.clientsMutex.Unlock()

		h.logger.Debug(context.Background(), "websocket hub shut down")
	})
	return nil
}

// IsShutdown reports whether Shutdown has run.
func (h *Hub) IsShutdown() bool {
	return h.isShutdown.Load()
}
