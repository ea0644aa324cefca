package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// drainInterval bounds how stale a connected client's view of the pipeline
// can be; spec.md §6 leaves the feed's delivery cadence unspecified, so this
// follows wsv.DrainEvents's own doc comment ("Apply's caller is expected to
// drain after every call so the feed stays bounded").
const drainInterval = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// eventHub polls wsv.DrainEvents on an interval and fans the drained events
// out to every connected /events client; spec.md §6: "Server-pushed
// pipeline/data events after client sends a subscription filter" — the
// filter itself is the non-goal part, so every client currently receives
// every event.
type eventHub struct {
	world  *wsv.WSV
	logger *logrus.Entry

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newEventHub(world *wsv.WSV, logger *logrus.Entry) *eventHub {
	return &eventHub{
		world:   world,
		logger:  logger.WithField("component", "api.events"),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *eventHub) pump() {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for range ticker.C {
		events := h.world.DrainEvents()
		if len(events) == 0 {
			continue
		}
		h.broadcast(events)
	}
}

func (h *eventHub) broadcast(events []wsv.Event) {
	payload, err := json.Marshal(events)
	if err != nil {
		h.logger.WithError(err).Error("marshal events")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.WithError(err).Warn("dropping client after write failure")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *eventHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *eventHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// handleEvents upgrades the connection and keeps it registered until the
// client disconnects; the subscription-filter message spec.md §6 describes
// the client sending is read and discarded (non-goal: no filter language).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.hub.register(conn)
	defer s.hub.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
