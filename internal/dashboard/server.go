// Package dashboard serves the process health endpoints and streams sync
// cycle events to WebSocket clients.
//
// Routes:
//   - GET /        liveness string
//   - GET /health  JSON status of both sync directions
//   - GET /ws      WebSocket stream of cycle events
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/sheetsync/sheetsync/internal/daemon"
)

// Error is the error class for the dashboard server.
var Error = errs.Class("dashboard")

// Liveness is the body of GET /.
const Liveness = "Synchronization Server is UP!!"

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeImportComplete reports a finished sheet → table cycle.
	MessageTypeImportComplete MessageType = "import_complete"

	// MessageTypeExportComplete reports a finished table → sheet cycle.
	MessageTypeExportComplete MessageType = "export_complete"

	// MessageTypeCycleError reports a failed cycle of either direction.
	MessageTypeCycleError MessageType = "cycle_error"

	// MessageTypeHello is sent to every client on connect.
	MessageTypeHello MessageType = "hello"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatusSource reports the scheduler state for /health.
type StatusSource interface {
	Status() daemon.Status
}

// PendingCounter reports the number of unexported change records.
type PendingCounter interface {
	CountChanges(ctx context.Context) (int, error)
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: :3000)
	Addr string
}

// DefaultConfig listens on port 3000.
func DefaultConfig() *Config {
	return &Config{Addr: ":3000"}
}

// Server manages the HTTP endpoints and WebSocket clients.
type Server struct {
	log      *zap.Logger
	addr     string
	listener net.Listener
	server   *http.Server

	status  StatusSource
	pending PendingCounter

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server. status and pending may be nil; /health then
// omits the values they provide.
func NewServer(log *zap.Logger, config *Config, status StatusSource, pending PendingCounter) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		log:       log,
		addr:      config.Addr,
		status:    status,
		pending:   pending,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handler returns the router of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Start begins serving and broadcasting. It returns once the listener is
// bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return Error.New("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes every client and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if serr := s.server.Shutdown(ctx); serr != nil {
			err = Error.New("server shutdown error: %w", serr)
		}
	}

	s.wg.Wait()
	s.log.Info("server stopped")
	return err
}

// Broadcast queues a message for every connected client. Messages are
// dropped when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.log.Warn("broadcast channel full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Error("failed to marshal message", zap.Error(err))
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.log.Debug("failed to send to client", zap.Error(err))
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.log.Debug("client connected", zap.Int("clients", count))

	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now()})
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, hello)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection open until the client goes away.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, exists := s.clients[conn]
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.log.Debug("client disconnected", zap.Int("clients", count))
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string     `json:"status"`
	LastImport     *time.Time `json:"last_import,omitempty"`
	LastExport     *time.Time `json:"last_export,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	PendingChanges *int       `json:"pending_changes,omitempty"`
	Clients        int        `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Clients: s.ClientCount(),
	}

	if s.status != nil {
		st := s.status.Status()
		resp.LastImport = timePtr(st.LastImport)
		resp.LastExport = timePtr(st.LastExport)
		resp.LastError = st.LastError
	}

	if s.pending != nil {
		n, err := s.pending.CountChanges(r.Context())
		if err != nil {
			s.log.Warn("failed to count pending changes", zap.Error(err))
			resp.Status = "degraded"
		} else {
			resp.PendingChanges = &n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, Liveness)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
