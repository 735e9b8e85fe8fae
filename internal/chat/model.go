package chat

import (
	"encoding/json"
	"time"
)

// TimestampFormat is the wire format of outbound timestamps.
const TimestampFormat = time.RFC3339Nano

// Message is a persisted chat line. It is never mutated after the store returns it.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is the ephemeral fan-out of a stored Message.
type Event struct {
	RoomID    string    `json:"room_id"`
	MessageID int64     `json:"message_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func eventFor(m *Message) Event {
	return Event{
		RoomID:    m.RoomID,
		MessageID: m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}
}

// InboundFrame is what clients send us.
type InboundFrame struct {
	Message *string `json:"message"`
}

// OutboundFrame is what every room member receives for a broadcast event.
type OutboundFrame struct {
	Message   string `json:"message"`
	SenderID  int64  `json:"sender_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorFrame is only ever sent to the session that caused it.
type ErrorFrame struct {
	Error string `json:"error"`
}

func encodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(OutboundFrame{
		Message:   ev.Content,
		SenderID:  ev.SenderID,
		Timestamp: ev.Timestamp.UTC().Format(TimestampFormat),
	})
}

func parseInbound(raw []byte) (string, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", ErrMalformedFrame
	}
	if frame.Message == nil {
		return "", ErrMalformedFrame
	}
	return *frame.Message, nil
}
