package eventclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types published on the test-event feed.
const (
	TypePCBAEvent       = "pcba_event"
	TypeUIDSearchResult = "uid_search_result"
	TypeTestResult      = "test_result"
	TypeSystemStatus    = "system_status"
	TypeEcho            = "echo"
)

var ErrMissingType = errors.New("message has no type")

// Message is the envelope carried by every frame on the feed.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Handler receives every successfully parsed message.
type Handler func(msg Message)

// ParseMessage decodes one frame. Anything that is not a JSON object with a
// type field is rejected.
func ParseMessage(frame []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("parse frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, ErrMissingType
	}
	return msg, nil
}

// Decode unmarshals the data payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("decode %s payload: empty data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
