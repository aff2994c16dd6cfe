package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operations reported in ReadingsChangedMessage.Op.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
	OpReset  = "reset"
	OpImport = "import"
)

// ReadingsChangedMessage announces that the readings collection was rewritten.
// It carries only what changed; consumers reload the collection from the
// slot store.
type ReadingsChangedMessage struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Months    []string  `json:"months,omitempty"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReadingsChangedMessage creates a message with a fresh id. count is the
// collection size after the change.
func NewReadingsChangedMessage(op string, months []string, count int) *ReadingsChangedMessage {
	return &ReadingsChangedMessage{
		ID:        uuid.NewString(),
		Op:        op,
		Months:    months,
		Count:     count,
		Timestamp: time.Now(),
	}
}

func (m *ReadingsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReadingsChangedMessageFromJSON(data []byte) (*ReadingsChangedMessage, error) {
	var msg ReadingsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
