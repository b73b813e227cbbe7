package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// OperationMessage announces that an outbox row is ready to be replayed.
// It carries only the row id and kind; the worker loads the rest from SQLite.
type OperationMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOperationMessage(id, kind string) *OperationMessage {
	return &OperationMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (m *OperationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OperationMessageFromJSON decodes a message body. A message without an id
// is rejected.
func OperationMessageFromJSON(data []byte) (*OperationMessage, error) {
	var msg OperationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("operation message has no id")
	}
	return &msg, nil
}
