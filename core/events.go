package core

import (
	"context"
	"time"
)

// Event types, mirroring row changes.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is a change notification pushed to realtime subscribers.
// An Event with no UserIDs is public.
type Event struct {
	Table     string      `json:"table"`
	Type      string      `json:"type"`
	Record    interface{} `json:"record"`
	UserIDs   []string    `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}

// Addressed reports whether the event should reach userID.
func (e Event) Addressed(userID string) bool {
	if len(e.UserIDs) == 0 {
		return true
	}
	return userID != "" && StringInSlice(userID, e.UserIDs)
}

// EventPublisher is anything that can broadcast Events.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NewEvent stamps an Event with the current time.
func NewEvent(table, typ string, record interface{}, userIDs ...string) Event {
	return Event{Table: table, Type: typ, Record: record, UserIDs: userIDs, CreatedAt: time.Now().UTC()}
}
