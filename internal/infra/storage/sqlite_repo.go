package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
)

const eventColumns = `id, session_id, timestamp, event_type, actor_id, target_id, payload, game_time`

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp, event.EventType, event.ActorID,
		event.TargetID, string(payloadBytes), event.GameTime,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GameEvent
	for rows.Next() {
		var e GameEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.SessionID, &e.Timestamp, &e.EventType, &e.ActorID,
			&e.TargetID, &payloadStr, &e.GameTime,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetBySession(ctx context.Context, sessionID string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE session_id = ? ORDER BY timestamp ASC, rowid ASC`
	return r.getMany(ctx, query, sessionID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, sessionID string, eventType string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE session_id = ? AND event_type = ? ORDER BY timestamp ASC, rowid ASC`
	return r.getMany(ctx, query, sessionID, eventType)
}

func (r *SQLiteEventRepository) GetByActorID(ctx context.Context, sessionID, actorID string) ([]GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE session_id = ? AND actor_id = ? ORDER BY timestamp ASC, rowid ASC`
	return r.getMany(ctx, query, sessionID, actorID)
}

// ---------------------------------------------------------
// SQLiteSessionRepository
// ---------------------------------------------------------

// SQLiteSessionRepository stores finished sessions in the sessions table.
type SQLiteSessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db, now: time.Now}
}

// Save upserts the snapshot and returns its location, "sqlite:<session id>".
func (r *SQLiteSessionRepository) Save(ctx context.Context, snap engine.SessionSnapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO sessions (session_id, saved_at, score, cured_patients, game_time, game_over, game_over_reason, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			saved_at=excluded.saved_at,
			score=excluded.score,
			cured_patients=excluded.cured_patients,
			game_time=excluded.game_time,
			game_over=excluded.game_over,
			game_over_reason=excluded.game_over_reason,
			payload=excluded.payload
	`
	state := snap.GameState
	_, err = r.db.ExecContext(ctx, query,
		snap.SessionID, r.now(), state.Score, state.CuredPatients, state.GameTime,
		state.GameOver, string(state.GameOverReason), string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return locationFor(snap.SessionID), nil
}

func locationFor(sessionID string) string {
	return "sqlite:" + sessionID
}

const sessionColumns = `session_id, saved_at, payload`

func (r *SQLiteSessionRepository) scan(row interface{ Scan(...any) error }) (*SessionRecord, error) {
	var (
		id      string
		savedAt time.Time
		payload string
	)
	if err := row.Scan(&id, &savedAt, &payload); err != nil {
		return nil, err
	}
	var snap engine.SessionSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	rec := recordFromSnapshot(snap, locationFor(id), savedAt)
	return &rec, nil
}

// List returns every saved session, newest first.
func (r *SQLiteSessionRepository) List(ctx context.Context) ([]SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Get returns the session with the given id.
func (r *SQLiteSessionRepository) Get(ctx context.Context, id string) (*SessionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	rec, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return rec, err
}
