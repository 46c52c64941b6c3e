package events

import "time"

// EventType identifies the kind of event emitted while checking.
type EventType string

const (
	EventCheckStart   EventType = "check.start"
	EventCheckProbe   EventType = "check.probe"
	EventCheckCompare EventType = "check.compare"
	EventCheckEnd     EventType = "check.end"
	EventCheckFatal   EventType = "check.fatal"
	EventListLoaded   EventType = "list.loaded"
	EventListError    EventType = "list.error"
	EventListChanged  EventType = "list.changed"
	EventRunSaved     EventType = "history.saved"
)

// Event represents a single runtime event.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Data      any           `json:"data"`
	Index     int           `json:"index,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}
