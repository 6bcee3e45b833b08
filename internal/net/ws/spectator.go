package ws

import (
	"github.com/gorilla/websocket"

	"agent-arena/server/internal/game"
	"agent-arena/server/internal/net/proto"
)

// serveSpectator runs the read loop for one read-only spectator. The
// session opens with a full state snapshot; afterwards the spectator only
// listens, except for explicit state refresh requests.
func (h *Handler) serveSpectator(conn *websocket.Conn) {
	sub := h.hub.registerSpectator(conn)
	defer func() {
		h.hub.unregisterSpectator(sub)
		conn.Close()
	}()

	sendState := func() bool {
		data, err := proto.EncodeEnvelope(game.EventGameState, h.engine.GameState())
		if err != nil {
			h.logger.Printf("[ws] failed to encode spectator state: %v", err)
			return true
		}
		return sub.write(data) == nil
	}

	if !sendState() {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("[ws] discarding malformed spectator message: %v", err)
			continue
		}

		switch msg.Type {
		case proto.TypeRequestGameState:
			if !sendState() {
				return
			}
		default:
			h.logger.Printf("[ws] unknown spectator message type %q", msg.Type)
		}
	}
}
