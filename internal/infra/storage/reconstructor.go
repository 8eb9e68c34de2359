// Package storage - reconstructor.go
// Session recap: rebuilds the story of a session from its journal.
package storage

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
)

// Reconstructor rebuilds what happened in a session from the event journal.
// Used by `er-server saves show` and for auditing.
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new session reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// Recap is the summary of a stored session.
type Recap struct {
	SessionID      string       `json:"session_id"`
	Arrivals       int          `json:"arrivals"`
	Cures          int          `json:"cures"`
	PerfectCouples int          `json:"perfect_couples"`
	RandomEvents   int          `json:"random_events"`
	Score          int          `json:"score"`
	GameOverReason string       `json:"game_over_reason,omitempty"`
	Timeline       []RecapEvent `json:"timeline"`
}

// RecapEvent is a simplified event for the recap screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	GameTime  int64  `json:"game_time"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    string `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// BuildRecap replays the journal of a session.
func (r *Reconstructor) BuildRecap(ctx context.Context, sessionID string) (*Recap, error) {
	journal, err := r.eventRepo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for session: %w", err)
	}

	recap := &Recap{SessionID: sessionID, Timeline: make([]RecapEvent, 0, len(journal))}
	for _, e := range journal {
		r.applyEvent(recap, e)
		summary, impact := r.describe(e)
		recap.Timeline = append(recap.Timeline, RecapEvent{
			Timestamp: e.Timestamp.Format("15:04:05"),
			GameTime:  e.GameTime,
			EventType: e.EventType,
			Summary:   summary,
			Impact:    impact,
		})
	}
	return recap, nil
}

// applyEvent folds one event into the counters.
func (r *Reconstructor) applyEvent(recap *Recap, e GameEvent) {
	switch events.EventType(e.EventType) {
	case events.EventTypePatientArrived:
		recap.Arrivals++
	case events.EventTypeRandomEvent:
		recap.RandomEvents++
	case events.EventTypePatientCured:
		recap.Cures++
		if perfect, _ := e.Payload["perfect_couple"].(bool); perfect {
			recap.PerfectCouples++
		}
		if points, ok := e.Payload["points"].(float64); ok {
			recap.Score += int(points)
		}
	case events.EventTypeGameOver:
		if reason, ok := e.Payload["reason"].(string); ok {
			recap.GameOverReason = reason
		}
	}
}

// describe delegates to the journal's own wording so the recap and the live
// history read the same.
func (r *Reconstructor) describe(e GameEvent) (string, string) {
	return events.Describe(events.GameEvent{
		Type:     events.EventType(e.EventType),
		ActorID:  e.ActorID,
		TargetID: e.TargetID,
		Payload:  e.Payload,
	})
}
