// Package storage provides the persistence layer for the game server.
// This package implements the repository pattern to keep the engine free of SQL.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
)

// ErrSessionNotFound is returned when no save matches the requested id.
var ErrSessionNotFound = errors.New("session not found")

// GameEvent mirrors the journal event structure for persistence.
// The engine should NOT import this; it talks to events.EventPersister instead.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	GameTime  int64                  `json:"game_time" db:"game_time"`
}

// EventRepository defines the interface for journal persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetBySession retrieves all events of a session (for replay).
	GetBySession(ctx context.Context, sessionID string) ([]GameEvent, error)

	// GetByEventType retrieves all events of a specific type within a session.
	GetByEventType(ctx context.Context, sessionID string, eventType string) ([]GameEvent, error)

	// GetByActorID retrieves all events performed by an actor within a session.
	GetByActorID(ctx context.Context, sessionID, actorID string) ([]GameEvent, error)
}

// SessionRecord is a saved session with its headline numbers lifted out of the snapshot.
type SessionRecord struct {
	SessionID     string                 `json:"session_id"`
	Location      string                 `json:"location"`
	SavedAt       time.Time              `json:"saved_at"`
	Score         int                    `json:"score"`
	CuredPatients int                    `json:"cured_patients"`
	GameTime      int64                  `json:"game_time"`
	GameOver      bool                   `json:"game_over"`
	Reason        string                 `json:"game_over_reason,omitempty"`
	Snapshot      engine.SessionSnapshot `json:"snapshot"`
}

// SessionStore saves finished sessions and reads them back.
// Both the SQLite repository and the JSON file store implement it.
type SessionStore interface {
	engine.SessionPersister

	// List returns every save, newest first.
	List(ctx context.Context) ([]SessionRecord, error)

	// Get returns one save. It fails with ErrSessionNotFound.
	Get(ctx context.Context, id string) (*SessionRecord, error)
}

func recordFromSnapshot(snap engine.SessionSnapshot, location string, savedAt time.Time) SessionRecord {
	return SessionRecord{
		SessionID:     snap.SessionID,
		Location:      location,
		SavedAt:       savedAt,
		Score:         snap.GameState.Score,
		CuredPatients: snap.GameState.CuredPatients,
		GameTime:      snap.GameState.GameTime,
		GameOver:      snap.GameState.GameOver,
		Reason:        string(snap.GameState.GameOverReason),
		Snapshot:      snap,
	}
}
