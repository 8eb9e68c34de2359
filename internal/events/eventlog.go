// Package events provides the game-event journal of a session.
// It is an append-only record of every state transition, replayed to clients and saved to storage.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeSessionStarted  EventType = "SESSION_STARTED"
	EventTypePatientArrived  EventType = "PATIENT_ARRIVED"
	EventTypeRandomEvent     EventType = "RANDOM_EVENT"
	EventTypePatientCured    EventType = "PATIENT_CURED"
	EventTypeDoctorRecovered EventType = "DOCTOR_RECOVERED"
	EventTypeGameOver        EventType = "GAME_OVER"
	EventTypeSessionEnded    EventType = "SESSION_ENDED"
)

// GameEvent represents an immutable record of a transition in the game.
type GameEvent struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`  // Who caused it (ARRIVALS, PLAYER, SYSTEM...)
	TargetID  string      `json:"target_id"` // Who was affected (optional)
	Payload   interface{} `json:"payload"`   // Event-specific data
	GameTime  int64       `json:"game_time"` // Session seconds elapsed
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of game events.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
	onError   func(GameEvent, error)
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// OnPersistError registers a callback for write-through failures.
func (el *EventLog) OnPersistError(fn func(GameEvent, error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append adds a new event to the log. Missing ID and Timestamp are filled in.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister, onError := el.persister, el.onError
	el.mu.Unlock()

	if persister != nil {
		// Write through off the caller's goroutine: callers may hold the session lock.
		go func(e GameEvent) {
			if err := persister.Append(e); err != nil && onError != nil {
				onError(e, err)
			}
		}(event)
	}
	return event
}

// GetByType returns all events of the given type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// GetBySession returns all events recorded for a session.
func (el *EventLog) GetBySession(sessionID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result
}

// Since returns the events appended after the first n, and the new length.
func (el *EventLog) Since(n int) ([]GameEvent, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if n >= len(el.events) {
		return nil, len(el.events)
	}
	out := make([]GameEvent, len(el.events)-n)
	copy(out, el.events[n:])
	return out, len(el.events)
}

// Replay returns a copy of the full history of events.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// Len returns the number of recorded events.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()[:8]
}
