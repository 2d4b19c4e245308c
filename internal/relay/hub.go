// Package relay fans server-generated envelopes out to browsers over one
// websocket per project id. The channel carries no acks, sequence numbers or
// replay; a dropped connection loses the events sent while it was down.
package relay

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"agent_agency/internal/domain"
)

var ErrNotConnected = errors.New("no relay connection for project")

type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*projectConn
	upgrader websocket.Upgrader
	logger   *log.Logger
}

type projectConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		conns: make(map[string]*projectConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handle upgrades the request and holds the connection open for the project,
// discarding any client frames. It blocks until the peer disconnects.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request, projectID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	pc := &projectConn{ws: ws}
	h.register(projectID, pc)
	defer h.unregister(projectID, pc)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Printf("relay connection closed project=%s err=%v", projectID, err)
			}
			return nil
		}
	}
}

// Publish sends one envelope to the project's connection. A write failure
// drops the connection; the caller decides whether a missing listener is an
// error worth surfacing.
func (h *Hub) Publish(projectID string, env domain.Envelope) error {
	h.mu.RLock()
	pc, ok := h.conns[projectID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	pc.mu.Lock()
	err := pc.ws.WriteJSON(env)
	pc.mu.Unlock()
	if err != nil {
		h.logger.Printf("relay publish failed project=%s type=%s err=%v", projectID, env.Type, err)
		h.unregister(projectID, pc)
		return err
	}
	return nil
}

func (h *Hub) Connected(projectID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[projectID]
	return ok
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, pc := range h.conns {
		_ = pc.ws.Close()
		delete(h.conns, id)
	}
}

func (h *Hub) register(projectID string, pc *projectConn) {
	h.mu.Lock()
	prev, ok := h.conns[projectID]
	h.conns[projectID] = pc
	h.mu.Unlock()
	if ok {
		_ = prev.ws.Close()
	}
}

func (h *Hub) unregister(projectID string, pc *projectConn) {
	h.mu.Lock()
	current, ok := h.conns[projectID]
	if ok && current == pc {
		delete(h.conns, projectID)
	}
	h.mu.Unlock()
	_ = pc.ws.Close()
}
