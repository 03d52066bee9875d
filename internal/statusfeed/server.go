// Package statusfeed pushes sync status to dashboard widgets over
// WebSocket.
//
// Widgets connect once and receive every state transition (offline,
// syncing, synced plus the pending count), every permanently failed
// mutation, and every reconciliation outcome as JSON messages. A client
// connecting mid-session immediately gets the last known state so it
// never renders stale status.
package statusfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Awaneesh03/digital-life-dashboard/internal/syncengine"
)

// MessageType defines the type of status message.
type MessageType string

const (
	// MessageTypeState carries the current sync state.
	MessageTypeState MessageType = "sync_state"

	// MessageTypeSyncFailed reports a mutation discarded after
	// exhausting its retries.
	MessageTypeSyncFailed MessageType = "sync_failed"

	// MessageTypeConflicts reports how many conflicting records a
	// reconciliation sweep settled.
	MessageTypeConflicts MessageType = "conflicts_resolved"
)

// Message is one status broadcast.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StateData mirrors the engine's observable state.
type StateData struct {
	Mode    string `json:"mode"`
	Pending int    `json:"pending"`
}

// SyncFailedData identifies the mutation that could not be synced.
type SyncFailedData struct {
	Op         string `json:"op"`
	Collection string `json:"collection"`
}

// ConflictsData carries the resolved-conflict count of one sweep.
type ConflictsData struct {
	Count int `json:"count"`
}

// Server manages WebSocket connections and broadcasts status messages.
// It implements the engine's Notifier and is wired to state changes via
// Engine.OnState.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	// lastState is replayed to clients connecting mid-session.
	lastState   *StateData
	lastStateMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8924).
	Port int

	// Logger for server activity (default: log.Default()).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8924,
		Logger: log.Default(),
	}
}

// NewServer creates a status feed server.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Status feed listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Status feed error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("status feed shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// StateChanged pushes a new sync state to connected widgets. Register
// it with Engine.OnState.
func (s *Server) StateChanged(state syncengine.State) {
	data := StateData{Mode: state.Mode.String(), Pending: state.Pending}

	s.lastStateMu.Lock()
	s.lastState = &data
	s.lastStateMu.Unlock()

	s.send(MessageTypeState, data)
}

// SyncFailed implements syncengine.Notifier.
func (s *Server) SyncFailed(op, collection string) {
	s.send(MessageTypeSyncFailed, SyncFailedData{Op: op, Collection: collection})
}

// ConflictsResolved implements syncengine.Notifier.
func (s *Server) ConflictsResolved(count int) {
	s.send(MessageTypeConflicts, ConflictsData{Count: count})
}

func (s *Server) send(typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Printf("Failed to marshal %s payload: %v", typ, err)
		return
	}

	msg := Message{Type: typ, Timestamp: time.Now(), Data: data}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop fans queued messages out to all clients.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Write outside the lock so a slow client can't stall
			// client bookkeeping.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Widget connected (total: %d)", clientCount)

	// Replay the last known state so the widget renders immediately.
	s.lastStateMu.RLock()
	last := s.lastState
	s.lastStateMu.RUnlock()
	if last != nil {
		payload, _ := json.Marshal(last)
		welcome, _ := json.Marshal(Message{
			Type:      MessageTypeState,
			Timestamp: time.Now(),
			Data:      payload,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, welcome)
		cancel()
	}

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and detects disconnects. Client
// messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Widget disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": clientCount,
	})
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected widgets.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
