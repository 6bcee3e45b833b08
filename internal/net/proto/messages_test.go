package proto

import (
	"encoding/json"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	t.Run("question submission", func(t *testing.T) {
		msg, err := DecodeClientMessage([]byte(`{"type":"SUBMIT_QUESTION","agent_id":7,"question":"Fish get thirsty"}`))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if msg.Type != TypeSubmitQuestion {
			t.Fatalf("type = %q", msg.Type)
		}
		if msg.AgentID != 7 || msg.Question != "Fish get thirsty" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	})

	t.Run("move", func(t *testing.T) {
		msg, err := DecodeClientMessage([]byte(`{"type":"MOVE","choice":"TIE"}`))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if msg.Type != TypeMove || msg.Choice != "TIE" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		if _, err := DecodeClientMessage([]byte(`{"type":`)); err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestEncodeEnvelope(t *testing.T) {
	data, err := EncodeEnvelope("RESULT", map[string]int{"o_count": 1, "x_count": 2})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var frame struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if frame.Type != "RESULT" {
		t.Fatalf("type = %q", frame.Type)
	}
	if frame.Data["o_count"] != 1 || frame.Data["x_count"] != 2 {
		t.Fatalf("unexpected data: %+v", frame.Data)
	}
}
