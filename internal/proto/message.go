package proto

import (
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

const (
	// SentAtLayout is the wire format of MessageFrame.SentAt (UTC).
	SentAtLayout = "2006-01-02 15:04:05"

	// QueryToken is the query parameter carrying the admission token.
	QueryToken = "token"
)

// MessageFrame is one chat message as sent over a stream or returned by
// the messages API.
type MessageFrame struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	MessageType string `json:"messageType"`
	Content     string `json:"content"`
	SentAt      string `json:"sentAt"`
}

// FrameFromMessage renders a core message for the wire.
func FrameFromMessage(msg core.Message) MessageFrame {
	return MessageFrame{
		ID:          msg.ID.String(),
		Sender:      msg.Sender,
		MessageType: msg.Kind,
		Content:     msg.Content,
		SentAt:      FormatSentAt(msg.SentAt),
	}
}

// FormatSentAt formats t in the wire layout.
func FormatSentAt(t time.Time) string {
	return t.UTC().Format(SentAtLayout)
}

// AdmissionTokenResponse is returned by the token issuing endpoint.
type AdmissionTokenResponse struct {
	Token string `json:"token"`
}
