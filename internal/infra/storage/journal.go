package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
)

// JournalSink translates journal events to storage events.
// It implements events.EventPersister.
type JournalSink struct {
	repo    EventRepository
	timeout time.Duration
}

// NewJournalSink creates a sink that writes every journal event to repo.
func NewJournalSink(repo EventRepository) *JournalSink {
	return &JournalSink{repo: repo, timeout: 5 * time.Second}
}

func (s *JournalSink) Append(event events.GameEvent) error {
	payload, err := payloadMap(event.Payload)
	if err != nil {
		return fmt.Errorf("event %s: %w", event.ID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.repo.Append(ctx, GameEvent{
		ID:        event.ID,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Payload:   payload,
		GameTime:  event.GameTime,
	})
}

// payloadMap normalises any payload to a JSON object. Scalars are kept under "value".
func payloadMap(payload interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": value}, nil
	}
	return out, nil
}
