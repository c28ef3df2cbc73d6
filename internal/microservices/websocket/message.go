package websocket

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Message protocol definitions

// Message types pushed to feed subscribers
const (
	TypePCBAEvent       = "pcba_event"        // stage progress of one serial
	TypeUIDSearchResult = "uid_search_result" // UID found by the searcher station
	TypeTestResult      = "test_result"       // a persisted test record changed
	TypeSystemStatus    = "system_status"     // server notices
	TypeEcho            = "echo"              // reply to a client frame
	TypeError           = "error"
)

// TimestampLayout is the local ISO-8601 form used for every message timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Message is one frame on the feed: {type, data, timestamp}
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp,omitempty"`
}

// constructor new message stamped with the current local time
func NewMessage(msgType string, data any) *Message {
	return &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: Now(),
	}
}

// Now formats the current time with TimestampLayout
func Now() string {
	return time.Now().Format(TimestampLayout)
}

// ToJSON: marshal Message struct to JSON
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("message_marshal_failed", "type", m.Type, "error", err)
		return nil, err
	}
	return data, nil
}
