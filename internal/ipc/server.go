// Package ipc exposes the companion over a local WebSocket endpoint: the UI
// pushes context snapshots and user actions in, the companion broadcasts
// render contracts out.
package ipc

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/orbitdesk/orbit/go-companion/internal/fsm"
	"github.com/orbitdesk/orbit/go-companion/internal/intent"
)

// ErrNoSnapshot is returned by Sample before the UI has sent any context.
var ErrNoSnapshot = errors.New("no context snapshot received yet")

// #region server-struct

// Server accepts UI connections and bridges them onto the companion loop.
// All shared state is mutex-guarded; the loop itself stays single-threaded
// and talks to the server only through channels and Sample.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	// Serializes writes: pong replies come from per-client read goroutines
	// while broadcasts come from the loop.
	writeMu sync.Mutex

	snapMu sync.Mutex
	latest *intent.Snapshot

	actions chan intent.UserAction
	toggles chan bool
}

// NewServer creates a server with buffered event channels. The endpoint is
// local-only, so cross-origin checks are relaxed.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		actions: make(chan intent.UserAction, 8),
		toggles: make(chan bool, 8),
	}
}

// Actions streams user responses to visible bubbles.
func (s *Server) Actions() <-chan intent.UserAction {
	return s.actions
}

// Toggles streams kill-switch changes.
func (s *Server) Toggles() <-chan bool {
	return s.toggles
}

// #endregion server-struct

// #region sample

// Sample returns the most recent context snapshot pushed by the UI. The
// loop skips the cycle when none has arrived yet.
func (s *Server) Sample() (intent.Snapshot, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.latest == nil {
		return intent.Snapshot{}, ErrNoSnapshot
	}
	return *s.latest, nil
}

// #endregion sample

// #region http

// ServeHTTP upgrades the connection and runs the per-client read loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[IPC] upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.mu.Unlock()
	log.Printf("[IPC] client connected (%d total)", count)

	go s.readClient(conn)
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	count := len(s.clients)
	s.mu.Unlock()
	conn.Close()
	log.Printf("[IPC] client disconnected (%d total)", count)
}

func (s *Server) readClient(conn *websocket.Conn) {
	defer s.dropClient(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[IPC] read error: %v", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[IPC] bad envelope, dropping: %v", err)
			continue
		}
		s.handleEnvelope(conn, env)
	}
}

// #endregion http

// #region dispatch

func (s *Server) handleEnvelope(conn *websocket.Conn, env Envelope) {
	switch env.Type {
	case MsgUserAction:
		var body userActionData
		if err := json.Unmarshal(env.Data, &body); err != nil {
			log.Printf("[IPC] bad user_action payload: %v", err)
			return
		}
		action, ok := intent.ParseUserAction(body.Action)
		if !ok {
			log.Printf("[IPC] unknown user action %q, dropping", body.Action)
			return
		}
		select {
		case s.actions <- action:
		default:
			log.Printf("[IPC] action channel full, dropping %s", action)
		}

	case MsgContextSnapshot:
		var snap intent.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			log.Printf("[IPC] bad context_snapshot payload: %v", err)
			return
		}
		s.snapMu.Lock()
		s.latest = &snap
		s.snapMu.Unlock()

	case MsgSetEnabled:
		var body setEnabledData
		if err := json.Unmarshal(env.Data, &body); err != nil {
			log.Printf("[IPC] bad set_enabled payload: %v", err)
			return
		}
		select {
		case s.toggles <- body.Enabled:
		default:
			log.Printf("[IPC] toggle channel full, dropping")
		}

	case MsgPing:
		s.send(conn, Envelope{Type: MsgPong})

	default:
		log.Printf("[IPC] unknown message type %q, dropping", env.Type)
	}
}

// #endregion dispatch

// #region broadcast

// Broadcast pushes a render contract to every connected client. Clients
// that fail to receive are dropped.
func (s *Server) Broadcast(contract fsm.Contract) {
	data, err := json.Marshal(contract)
	if err != nil {
		log.Printf("[IPC] marshal contract: %v", err)
		return
	}
	env := Envelope{Type: MsgRender, Data: data}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := s.sendEnvelope(c, env); err != nil {
			log.Printf("[IPC] broadcast failed, dropping client: %v", err)
			s.dropClient(c)
		}
	}
}

func (s *Server) send(conn *websocket.Conn, env Envelope) {
	if err := s.sendEnvelope(conn, env); err != nil {
		log.Printf("[IPC] send failed: %v", err)
	}
}

func (s *Server) sendEnvelope(conn *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	for _, c := range conns {
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	}
}

// #endregion broadcast
