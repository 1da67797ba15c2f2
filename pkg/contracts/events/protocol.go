// Package events contains the messages streamed over the /ws/stats
// WebSocket while a run is in progress.
package events

import (
	"encoding/json"
	"time"

	api "tabstat/pkg/contracts/api/v1"
)

// Protocol version
const (
	ProtocolVersion = "1.0"
	ProtocolName    = "tabstat-websocket-protocol"
)

// MessageType identifies the payload of a Message
type MessageType string

const (
	// TypeAccepted is sent once the request has been parsed
	TypeAccepted MessageType = "accepted"
	// TypeProgress is sent once per finished chunk
	TypeProgress MessageType = "progress"
	// TypeResult carries the final StatsResponse and closes the stream
	TypeResult MessageType = "result"
	// TypeError reports a protocol error, such as an unparsable request
	TypeError MessageType = "error"
)

// Message is a single WebSocket frame
type Message struct {
	Version   string          `json:"version"`
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// Progress is the payload of a TypeProgress message
type Progress struct {
	Chunk      int      `json:"chunk"`
	Rows       api.Span `json:"rows"`
	Done       int      `json:"done"`
	Total      int      `json:"total"`
	Percentage float64  `json:"percentage"`
	DurationMS float64  `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// ProtocolError is the payload of a TypeError message
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Protocol error codes
const (
	ErrCodeInvalidFrame    = "INVALID_FRAME"
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeServerError     = "SERVER_ERROR"
)

// NewMessage builds a Message with payload encoded as JSON
func NewMessage(id string, seq int64, typ MessageType, payload interface{}) (Message, error) {
	msg := Message{
		Version:   ProtocolVersion,
		ID:        id,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Sequence:  seq,
	}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = raw
	return msg, nil
}
