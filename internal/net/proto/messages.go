// Package proto defines the websocket wire format shared by agent and
// spectator connections: a flat inbound client message and a typed
// outbound envelope.
package proto

import "encoding/json"

// Inbound message type identifiers.
const (
	TypeSubmitQuestion   = "SUBMIT_QUESTION"
	TypeMove             = "MOVE"
	TypeComment          = "COMMENT"
	TypeHeartbeat        = "HEARTBEAT"
	TypeRequestGameState = "REQUEST_GAME_STATE"
)

// ClientMessage captures an inbound websocket message. The struct is the
// union of all inbound fields; Type selects which ones are meaningful.
type ClientMessage struct {
	Type     string `json:"type"`
	AgentID  int64  `json:"agent_id,omitempty"`
	Question string `json:"question,omitempty"`
	Choice   string `json:"choice,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DecodeClientMessage converts a raw websocket payload into a structured
// message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	err := json.Unmarshal(payload, &msg)
	return msg, err
}

// Envelope is the outbound frame: an event name plus its payload.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EncodeEnvelope renders an outbound event frame.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Type: event, Data: payload})
}
