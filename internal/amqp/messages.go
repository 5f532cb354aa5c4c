package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType names what happened in a user's ledger or session.
type EventType string

const (
	EventLogin               EventType = "session.login"
	EventLogout              EventType = "session.logout"
	EventTransactionCreated  EventType = "transaction.created"
	EventTransactionRejected EventType = "transaction.rejected"
)

var ErrMissingEventType = errors.New("activity event has no type")

// ActivityEvent is the message published for every user-visible change.
type ActivityEvent struct {
	Type      EventType `json:"type"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivityEvent stamps an event with the current time
func NewActivityEvent(typ EventType, userID int64, message string) *ActivityEvent {
	return &ActivityEvent{
		Type:      typ,
		UserID:    userID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ActivityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ActivityEventFromJSON decodes an event, rejecting ones without a type
func ActivityEventFromJSON(data []byte) (*ActivityEvent, error) {
	var ev ActivityEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, ErrMissingEventType
	}
	return &ev, nil
}
