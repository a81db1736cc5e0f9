package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

func TestMessageFrameCarriesRecord(t *testing.T) {
	msg := &domain.Message{
		ID:        "m1",
		SessionID: "s1",
		Type:      domain.MessageTypeAssistant,
		Content:   "hello",
		Status:    domain.MessageStatusDelivered,
		Seq:       7,
		CreatedAt: time.Now().Truncate(time.Millisecond),
	}

	frame := NewMessageFrame(msg)
	if frame.Event != EventMessage || frame.SessionID != "s1" {
		t.Fatalf("unexpected frame envelope: %+v", frame.BaseFrame)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	var decoded MessageFrame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}

	got := decoded.ToMessage()
	if got.ID != msg.ID || got.Type != msg.Type || got.Content != msg.Content ||
		got.Status != msg.Status || got.Seq != msg.Seq || !got.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("record did not survive the wire: %+v", got)
	}
}

func TestMessageFrameMatchesPollRecordShape(t *testing.T) {
	frame := NewMessageFrame(&domain.Message{
		ID:        "m1",
		SessionID: "s1",
		Type:      domain.MessageTypeAssistant,
		Content:   "hi",
		Status:    domain.MessageStatusDelivered,
		CreatedAt: time.Now(),
	})
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}

	// A poll-response consumer reads the same record keys off the frame.
	for _, key := range []string{"id", "session_id", "type", "content", "status", "created_at"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("record key %q missing from the frame: %s", key, data)
		}
	}
	if raw["type"] != string(domain.MessageTypeAssistant) {
		t.Fatalf("type key carries %v, want %q", raw["type"], domain.MessageTypeAssistant)
	}
}

func TestEventDiscriminatorDispatch(t *testing.T) {
	frames := map[string]interface{}{
		EventMessage: NewMessageFrame(&domain.Message{ID: "m1", SessionID: "s1", Type: domain.MessageTypeUser, Content: "x", Status: domain.MessageStatusSent}),
		EventStatus:  StatusFrame{BaseFrame: BaseFrame{Event: EventStatus}, State: StateComposing},
		EventError:   ErrorFrame{BaseFrame: BaseFrame{Event: EventError}, Code: ErrorCodeAIService, Message: "boom", Retryable: true},
	}
	for want, frame := range frames {
		data, err := json.Marshal(frame)
		if err != nil {
			t.Fatalf("marshal %s frame: %v", want, err)
		}
		var base BaseFrame
		if err := json.Unmarshal(data, &base); err != nil {
			t.Fatalf("unmarshal %s frame: %v", want, err)
		}
		if base.Event != want {
			t.Errorf("event discriminator lost: got %q, want %q", base.Event, want)
		}
	}
}
