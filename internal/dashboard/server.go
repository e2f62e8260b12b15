// Package dashboard provides a real-time WebSocket feed of sync activity.
//
// The server broadcasts sync state changes and refreshed business statistics
// to connected WebSocket clients, and serves the latest of each as JSON.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSyncStatus carries a syncer status snapshot
	MessageTypeSyncStatus MessageType = "sync_status"

	// MessageTypeStats carries dashboard statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// clientQueue is how many messages a client may lag behind before it is
// disconnected.
const clientQueue = 32

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	latest map[MessageType]Message
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log logrus.FieldLogger
}

// subscriber is one WebSocket client. Messages are queued on send and written
// by the client's own goroutine, so a slow client only delays itself.
type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	code   websocket.StatusCode
	reason string
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8081, 0 picks a free port)
	Port int

	// Logger for server activity (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Port: 8081}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:   fmt.Sprintf(":%d", config.Port),
		subs:   make(map[*subscriber]struct{}),
		latest: make(map[MessageType]Message),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.WithField("component", "dashboard"),
	}
}

// Handler returns the HTTP routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleLatest(MessageTypeSyncStatus))
	mux.HandleFunc("/api/stats", s.handleLatest(MessageTypeStats))
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	// Only the header read is bounded: hijacked WebSocket connections keep
	// any deadline the server sets.
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.WithField("addr", ln.Addr().String()).Info("dashboard listening")
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("dashboard server failed")
		}
	}()
	return nil
}

// Stop disconnects every client, shuts the HTTP server down and waits for
// the client goroutines to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closed = true
	for sub := range s.subs {
		s.dropLocked(sub, websocket.StatusGoingAway, "server shutting down")
	}
	s.mu.Unlock()

	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("server shutdown error: %w", shutdownErr)
		}
	}

	s.cancel()
	s.wg.Wait()
	s.log.Info("dashboard stopped")
	return err
}

// Broadcast stamps msg, keeps it as the latest of its type and queues it for
// every client. A client whose queue is full is disconnected.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.WithError(err).Warn("failed to marshal message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[msg.Type] = msg
	for sub := range s.subs {
		select {
		case sub.send <- data:
		default:
			s.log.Warn("dashboard client too slow, disconnecting")
			s.dropLocked(sub, websocket.StatusPolicyViolation, "client too slow")
		}
	}
}

// Latest returns the last message broadcast with type t.
func (s *Server) Latest(t MessageType) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.latest[t]
	return msg, ok
}

// handleWebSocket registers a client and queues the current status and stats
// ahead of any later broadcast.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, clientQueue)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	for _, t := range []MessageType{MessageTypeSyncStatus, MessageTypeStats} {
		msg, ok := s.latest[t]
		if !ok {
			msg = Message{Type: t, Timestamp: time.Now()}
		}
		if data, err := json.Marshal(msg); err == nil {
			sub.send <- data
		}
	}
	s.subs[sub] = struct{}{}
	clients := len(s.subs)
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.WithField("clients", clients).Debug("client connected")
	go s.serveClient(sub)
}

// serveClient writes queued messages until the client leaves or is dropped.
// Incoming frames are discarded.
func (s *Server) serveClient(sub *subscriber) {
	defer s.wg.Done()

	gone := sub.conn.CloseRead(s.ctx).Done()
	for {
		select {
		case data, ok := <-sub.send:
			if !ok {
				_ = sub.conn.Close(sub.code, sub.reason)
				return
			}
			ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
			err := sub.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.log.WithError(err).Debug("failed to send to client")
				s.drop(sub, websocket.StatusInternalError, "")
			}
		case <-gone:
			gone = nil
			s.drop(sub, websocket.StatusNormalClosure, "")
		}
	}
}

func (s *Server) drop(sub *subscriber, code websocket.StatusCode, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(sub, code, reason)
}

// dropLocked unregisters sub and closes its queue; the client goroutine then
// closes the connection. Dropping twice is a no-op. s.mu must be held.
func (s *Server) dropLocked(sub *subscriber, code websocket.StatusCode, reason string) {
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	sub.code, sub.reason = code, reason
	close(sub.send)
	s.log.WithField("clients", len(s.subs)).Debug("client disconnected")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleLatest(t MessageType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		msg, ok := s.Latest(t)
		if !ok || len(msg.Data) == 0 {
			_, _ = w.Write([]byte("null"))
			return
		}
		_, _ = w.Write(msg.Data)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>billsync</title>
</head>
<body>
    <h1>billsync status</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Sync status: <a href="/api/status">/api/status</a></p>
    <p>Statistics: <a href="/api/stats">/api/stats</a></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
