package proto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

func TestFrameFromMessage(t *testing.T) {
	id := uuid.MustParse("0190a5c8-1c2b-7d3e-8f40-123456789abc")
	sentAt := time.Date(2024, 3, 9, 17, 4, 5, 999, time.FixedZone("X", 3*3600))

	frame := FrameFromMessage(core.Message{
		ID:      id,
		RoomID:  7,
		Sender:  "alice",
		Kind:    "text",
		Content: "hi",
		SentAt:  sentAt,
	})

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"id":"0190a5c8-1c2b-7d3e-8f40-123456789abc","sender":"alice","messageType":"text","content":"hi","sentAt":"2024-03-09 14:04:05"}`
	if string(data) != want {
		t.Fatalf("unexpected frame\n got: %s\nwant: %s", data, want)
	}
}
