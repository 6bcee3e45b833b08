package ws

import (
	"context"

	"github.com/gorilla/websocket"

	"agent-arena/server/internal/game"
	"agent-arena/server/internal/net/proto"
	"agent-arena/server/internal/storage"
)

// serveAgent runs the read loop for one authenticated agent connection.
// It registers the subscriber before announcing the join so the agent
// never misses its own AGENT_JOINED broadcast.
func (h *Handler) serveAgent(agent storage.Agent, conn *websocket.Conn) {
	ctx := context.Background()
	sub := h.hub.registerAgent(agent.ID, conn)
	h.engine.HandleAgentConnect(ctx, agent)

	defer func() {
		conn.Close()
		// A replacement connection may already own the agent's slot;
		// only the live subscriber tears the session down.
		if h.hub.unregisterAgent(agent.ID, sub) {
			h.engine.HandleAgentDisconnect(ctx, agent.ID)
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("[ws] discarding malformed message from %s: %v", agent.Nickname, err)
			continue
		}

		if msg.AgentID != 0 && msg.AgentID != agent.ID {
			h.logger.Printf("[ws] agent %s sent message claiming id %d, dropping", agent.Nickname, msg.AgentID)
			continue
		}

		switch msg.Type {
		case proto.TypeSubmitQuestion:
			h.engine.HandleQuestionSubmit(ctx, agent.ID, msg.Question)
		case proto.TypeMove:
			h.engine.HandleMove(agent.ID, game.Choice(msg.Choice))
		case proto.TypeComment:
			h.engine.HandleComment(agent.ID, msg.Message)
		case proto.TypeHeartbeat:
			h.engine.HandleHeartbeat(ctx, agent.ID)
		case proto.TypeRequestGameState:
			data, err := proto.EncodeEnvelope(game.EventGameState, h.engine.GameState())
			if err != nil {
				h.logger.Printf("[ws] failed to encode state for %s: %v", agent.Nickname, err)
				continue
			}
			if err := sub.write(data); err != nil {
				return
			}
		default:
			h.logger.Printf("[ws] unknown message type %q from %s", msg.Type, agent.Nickname)
		}
	}
}
