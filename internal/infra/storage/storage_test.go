package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "data", "er.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot(id string, score int, savedAt time.Time) engine.SessionSnapshot {
	pid := 2
	return engine.SessionSnapshot{
		SessionID: id,
		GameState: engine.State{
			SessionID:        id,
			Score:            score,
			CuredPatients:    score / 100,
			GameTime:         42,
			GameOver:         true,
			GameOverReason:   engine.ReasonCollapse,
			HospitalPressure: 35,
		},
		SelectedPatientID: &pid,
		Patients: []patient.Patient{
			*patient.New(2, patient.Catalog[3], savedAt),
		},
		Doctors:       []engine.DoctorView{{ID: 1, Name: "Nicki", Available: true}},
		SaveTimestamp: savedAt.Format("20060102_150405"),
		SaveDate:      savedAt.Format(time.RFC3339),
	}
}

func TestSQLiteEventRepository_AppendAndQuery(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := []GameEvent{
		{ID: "e1", SessionID: "s1", Timestamp: base, EventType: "SESSION_STARTED", ActorID: "PLAYER"},
		{ID: "e2", SessionID: "s1", Timestamp: base.Add(time.Second), EventType: "PATIENT_ARRIVED", ActorID: "ARRIVALS", TargetID: "1",
			Payload: map[string]interface{}{"name": "Kim la Cry Queen"}, GameTime: 1},
		{ID: "e3", SessionID: "s2", Timestamp: base, EventType: "PATIENT_ARRIVED", ActorID: "ARRIVALS"},
	}
	for _, e := range rows {
		require.NoError(t, repo.Append(ctx, e))
	}

	got, err := repo.GetBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "Kim la Cry Queen", got[1].Payload["name"])
	assert.Equal(t, int64(1), got[1].GameTime)

	arrivals, err := repo.GetByEventType(ctx, "s1", "PATIENT_ARRIVED")
	require.NoError(t, err)
	assert.Len(t, arrivals, 1)

	byActor, err := repo.GetByActorID(ctx, "s2", "ARRIVALS")
	require.NoError(t, err)
	assert.Len(t, byActor, 1)

	assert.Error(t, repo.Append(ctx, rows[0]), "ids are unique")
}

func TestSQLiteSessionRepository_SaveListGet(t *testing.T) {
	repo := NewSQLiteSessionRepository(openTestDB(t))
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	loc, err := repo.Save(ctx, testSnapshot("old", 100, clock))
	require.NoError(t, err)
	assert.Equal(t, "sqlite:old", loc)
	_, err = repo.Save(ctx, testSnapshot("new", 450, clock))
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].SessionID)
	assert.Equal(t, 450, list[0].Score)

	rec, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 100, rec.Score)
	assert.True(t, rec.GameOver)
	assert.Equal(t, "collapse", rec.Reason)
	require.NotNil(t, rec.Snapshot.SelectedPatientID)
	assert.Equal(t, 2, *rec.Snapshot.SelectedPatientID)
	require.Len(t, rec.Snapshot.Patients, 1)
	assert.Equal(t, patient.UrgencyMedium, rec.Snapshot.Patients[0].Urgency)

	_, err = repo.Save(ctx, testSnapshot("old", 700, clock))
	require.NoError(t, err)
	rec, err = repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 700, rec.Score, "saving twice overwrites")

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJournalSink_WritesThroughEventLog(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	log := events.NewEventLog(NewJournalSink(repo))

	log.Append(events.GameEvent{SessionID: "s1", Type: events.EventTypeRandomEvent, ActorID: "SYSTEM",
		Payload: map[string]interface{}{"text": "⭐ VIP in arrivo: Bonus punti speciali!"}})
	log.Append(events.GameEvent{SessionID: "s1", Type: events.EventTypeSessionStarted, ActorID: "PLAYER"})
	log.Append(events.GameEvent{SessionID: "s1", Type: events.EventTypeGameOver, ActorID: "SYSTEM", Payload: "collapse"})

	require.Eventually(t, func() bool {
		got, err := repo.GetBySession(context.Background(), "s1")
		return err == nil && len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	overs, err := repo.GetByEventType(context.Background(), "s1", string(events.EventTypeGameOver))
	require.NoError(t, err)
	require.Len(t, overs, 1)
	assert.Equal(t, "collapse", overs[0].Payload["value"])
}

func TestPayloadMap(t *testing.T) {
	m, err := payloadMap(engine.Cure{PatientID: 3, Points: 150})
	require.NoError(t, err)
	assert.Equal(t, float64(3), m["patient_id"])
	assert.Equal(t, float64(150), m["points"])

	m, err = payloadMap(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = payloadMap(make(chan int))
	assert.Error(t, err)
}

func TestFileStore_SaveListGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	store := NewFileStore(dir)
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	path, err := store.Save(ctx, testSnapshot("a", 100, first))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "game_20260301_100000.json"), path)
	_, err = store.Save(ctx, testSnapshot("b", 300, first.Add(time.Hour)))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n    \"session_id\": \"a\""), "indented with four spaces")
	assert.Contains(t, string(raw), `"game_state"`)
	assert.Contains(t, string(raw), `"save_timestamp": "20260301_100000"`)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].SessionID)

	rec, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, path, rec.Location)
	assert.Equal(t, 100, rec.Score)

	rec, err = store.Get(ctx, "game_20260301_110000.json")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.SessionID)

	_, err = store.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, "game_19990101_000000.json")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFileStore_SaveFailsOnUnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := NewFileStore(file).Save(context.Background(), testSnapshot("a", 0, time.Now()))

	assert.Error(t, err)
}

func TestReconstructor_BuildRecap(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	journal := []GameEvent{
		{EventType: "SESSION_STARTED", ActorID: "PLAYER"},
		{EventType: "PATIENT_ARRIVED", ActorID: "ARRIVALS", Payload: map[string]interface{}{"name": "Cardi la Beef Dragon", "urgency": "high"}},
		{EventType: "PATIENT_ARRIVED", ActorID: "ARRIVALS", Payload: map[string]interface{}{"name": "Kim la Cry Queen", "urgency": "medium"}},
		{EventType: "PATIENT_CURED", ActorID: "DOCTOR_1", Payload: map[string]interface{}{
			"patient_name": "Cardi la Beef Dragon", "doctor_name": "Nicki", "points": 350, "perfect_couple": true}},
		{EventType: "RANDOM_EVENT", ActorID: "SYSTEM", Payload: map[string]interface{}{"text": "🎉 Giornata fortunata: Punteggio raddoppiato!"}},
		{EventType: "GAME_OVER", ActorID: "SYSTEM", Payload: map[string]interface{}{"reason": "overwhelmed"}},
	}
	for i, e := range journal {
		e.ID = events.GenerateEventID()
		e.SessionID = "s1"
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.GameTime = int64(i)
		require.NoError(t, repo.Append(ctx, e))
	}

	recap, err := NewReconstructor(repo).BuildRecap(ctx, "s1")

	require.NoError(t, err)
	assert.Equal(t, 2, recap.Arrivals)
	assert.Equal(t, 1, recap.Cures)
	assert.Equal(t, 1, recap.PerfectCouples)
	assert.Equal(t, 1, recap.RandomEvents)
	assert.Equal(t, 350, recap.Score)
	assert.Equal(t, "overwhelmed", recap.GameOverReason)
	require.Len(t, recap.Timeline, 6)
	assert.Equal(t, "Cardi la Beef Dragon curato da Nicki: +350 punti.", recap.Timeline[3].Summary)
	assert.Equal(t, "POSITIVE", recap.Timeline[3].Impact)
	assert.Equal(t, "NEGATIVE", recap.Timeline[5].Impact)
	assert.Equal(t, "10:00:01", recap.Timeline[1].Timestamp)
}
