package api

import (
	"sync"
	"time"

	"github.com/BioHazard786/Warpcast/internal/adaptor"
)

const defaultEventCapacity = 100

// Event is one callback delivered by the session.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Name    string    `json:"name"`
	Payload any       `json:"payload,omitempty"`
}

// EventLog keeps the most recent session callbacks. It implements
// adaptor.Callbacks and can forward to another sink.
type EventLog struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	next     adaptor.Callbacks
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &EventLog{capacity: capacity}
}

// Forward sends every event on to sink as well.
func (l *EventLog) Forward(sink adaptor.Callbacks) *EventLog {
	l.next = sink
	return l
}

func (l *EventLog) OnError(kind string, detail any) {
	l.add(Event{Time: time.Now(), Kind: "error", Name: kind, Payload: jsonable(detail)})
	if l.next != nil {
		l.next.OnError(kind, detail)
	}
}

func (l *EventLog) OnNotification(definition string, payload any) {
	l.add(Event{Time: time.Now(), Kind: "notification", Name: definition, Payload: jsonable(payload)})
	if l.next != nil {
		l.next.OnNotification(definition, payload)
	}
}

func (l *EventLog) add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
}

// Events returns the retained events, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// jsonable replaces errors with their text.
func jsonable(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}
