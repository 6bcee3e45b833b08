// Package ws owns the websocket fan-out and per-connection sessions for
// agents and spectators.
package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agent-arena/server/internal/game"
	"agent-arena/server/internal/net/proto"
)

const writeTimeout = 10 * time.Second

// subscriber wraps one websocket connection with a write mutex so the
// broadcast fan-out and the session's own replies never interleave frames.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *subscriber) close() {
	s.conn.Close()
}

// Hub routes engine events to connected sockets. Agent subscribers are
// keyed by agent id with at most one live connection each; spectators are
// an unkeyed set. A subscriber whose write fails has its connection
// closed; unregistration belongs to the session's read-loop teardown,
// which also reports the disconnect to the engine.
type Hub struct {
	logger *log.Logger

	mu         sync.Mutex
	agents     map[int64]*subscriber
	spectators map[*subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:     logger,
		agents:     make(map[int64]*subscriber),
		spectators: make(map[*subscriber]struct{}),
	}
}

// registerAgent installs the connection as the agent's live subscriber.
// An existing subscriber for the same id is closed, replace semantics.
func (h *Hub) registerAgent(agentID int64, conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	previous := h.agents[agentID]
	h.agents[agentID] = sub
	h.mu.Unlock()
	if previous != nil {
		previous.close()
	}
	return sub
}

// unregisterAgent removes the subscriber if it is still the agent's live
// one. It reports false when a replacement connection has already taken
// over, in which case the caller must not treat the agent as gone.
func (h *Hub) unregisterAgent(agentID int64, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.agents[agentID] != sub {
		return false
	}
	delete(h.agents, agentID)
	return true
}

func (h *Hub) registerSpectator(conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	h.spectators[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unregisterSpectator(sub *subscriber) {
	h.mu.Lock()
	delete(h.spectators, sub)
	h.mu.Unlock()
}

// CloseAgent force-closes the agent's connection if one is live. The
// session read loop observes the close and performs the usual teardown.
func (h *Hub) CloseAgent(agentID int64) {
	h.mu.Lock()
	sub := h.agents[agentID]
	h.mu.Unlock()
	if sub != nil {
		sub.close()
	}
}

// Broadcast sends the event to every connected agent.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := proto.EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Printf("[ws] failed to encode %s broadcast: %v", event, err)
		return
	}

	h.mu.Lock()
	subs := make(map[int64]*subscriber, len(h.agents))
	for id, sub := range h.agents {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Printf("[ws] dropping agent %d after failed write: %v", id, err)
			sub.close()
		}
	}
}

// NotifyAgent sends the event to a single agent's connection, if live.
func (h *Hub) NotifyAgent(agentID int64, event string, payload any) {
	h.mu.Lock()
	sub := h.agents[agentID]
	h.mu.Unlock()
	if sub == nil {
		return
	}

	data, err := proto.EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Printf("[ws] failed to encode %s for agent %d: %v", event, agentID, err)
		return
	}
	if err := sub.write(data); err != nil {
		h.logger.Printf("[ws] dropping agent %d after failed write: %v", agentID, err)
		sub.close()
	}
}

// NotifySpectators sends the event to every spectator connection.
func (h *Hub) NotifySpectators(event string, payload any) {
	data, err := proto.EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Printf("[ws] failed to encode %s for spectators: %v", event, err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.spectators))
	for sub := range h.spectators {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.unregisterSpectator(sub)
			sub.close()
		}
	}
}

var _ game.Notifier = (*Hub)(nil)
