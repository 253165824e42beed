package amqp

import (
	"encoding/json"
	"time"
)

// Entity names carried in change messages.
const (
	EntityExpense  = "expense"
	EntityIncome   = "income"
	EntityTransfer = "transfer"
	EntityAccount  = "account"
	EntityBudget   = "budget"
)

// Operations carried in change messages.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ChangeMessage is the lightweight event published after an entity
// mutation. It names what changed and which "YYYY-MM" month the change
// touches; the worker re-reads the full collections itself, so nothing
// heavier needs to travel over the wire.
type ChangeMessage struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(entity, id, op, month string) *ChangeMessage {
	return &ChangeMessage{
		Entity:    entity,
		ID:        id,
		Op:        op,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
