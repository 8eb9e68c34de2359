package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine/mocks"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/metrics"
)

var (
	cardi    = patient.Catalog[0] // high
	vittorio = patient.Catalog[1] // medium
	sara     = patient.Catalog[4] // low
)

// quietOptions keeps every background loop asleep so tests drive the session by hand.
func quietOptions() engine.Options {
	return engine.Options{
		RecoveryDelay:    time.Hour,
		ArrivalMin:       time.Hour,
		ArrivalMax:       time.Hour,
		EventMin:         time.Hour,
		EventMax:         time.Hour,
		TickRate:         time.Hour,
		TimerJoinTimeout: 50 * time.Millisecond,
		Rand:             engine.NewSeededRand(7),
		Metrics:          metrics.New(),
	}
}

func newEngine(t *testing.T, persister engine.SessionPersister, opts engine.Options) *engine.Engine {
	t.Helper()
	e := engine.NewEngine(events.NewEventLog(nil), persister, logger.NewNop(), opts)
	t.Cleanup(e.Shutdown)
	return e
}

func arrive(e *engine.Engine, a patient.Archetype) patient.Patient {
	p := e.Patients().Admit(a)
	e.OnPatientArrival(p)
	return p
}

func countTitle(notes []engine.Notification, title string) int {
	n := 0
	for _, note := range notes {
		if note.Title == title {
			n++
		}
	}
	return n
}

func TestStartSession_ResetsState(t *testing.T) {
	e := newEngine(t, nil, quietOptions())

	first := e.StartSession()
	arrive(e, cardi)
	second := e.StartSession()

	require.NotEqual(t, first, second)
	s := e.State()
	assert.True(t, s.IsRunning)
	assert.False(t, s.GameOver)
	assert.Zero(t, s.Score)
	assert.Zero(t, s.HospitalPressure)
	assert.Zero(t, e.Patients().Count())
	require.Len(t, s.Notifications, 1)
	assert.Equal(t, "🏥 Gioco Iniziato!", s.Notifications[0].Title)
	assert.Equal(t, engine.NotifySuccess, s.Notifications[0].Type)
}

func TestArrivals_PressureIsSumOfIncrements(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()

	want := 0
	for _, a := range []patient.Archetype{vittorio, cardi, sara, vittorio, cardi} {
		p := arrive(e, a)
		want += p.ArrivalPressure()
		assert.Equal(t, want, e.State().HospitalPressure)
	}
	assert.Equal(t, 60, want)
}

func TestArrival_IgnoredWhenNotRunning(t *testing.T) {
	e := newEngine(t, nil, quietOptions())

	e.OnPatientArrival(patient.Patient{ID: 1, Urgency: patient.UrgencyHigh})

	assert.Zero(t, e.State().HospitalPressure)
	assert.Empty(t, e.State().Notifications)
}

func TestAssign_PerfectCoupleHighUrgency(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	p := arrive(e, cardi)
	nicki, ok := e.Doctors().GetByName("Nicki")
	require.True(t, ok)

	cure, err := e.AssignDirect(nicki.ID, p.ID)

	require.NoError(t, err)
	assert.True(t, cure.PerfectCouple)
	assert.Equal(t, 350, cure.Points)
	assert.Equal(t, 20, cure.PressureDrop)

	s := e.State()
	assert.Equal(t, 350, s.Score)
	assert.Equal(t, 1, s.CuredPatients)
	assert.Zero(t, s.HospitalPressure, "pressure is floored at zero")

	_, stillThere := e.Patients().Get(p.ID)
	assert.False(t, stillThere)

	busy, _ := e.Doctors().Get(nicki.ID)
	assert.False(t, busy.Available)
	require.NotNil(t, busy.CurrentPatient)
	assert.Equal(t, p.ID, busy.CurrentPatient.ID)
	assert.True(t, busy.CurrentPatient.BeingTreated)

	last := s.Notifications[len(s.Notifications)-1]
	assert.Equal(t, "✅ Paziente Curato! 💕 Coppia Perfetta!", last.Title)
	assert.Equal(t, engine.NotifyCouple, last.Type)
	assert.Equal(t, "Cardi la Beef Dragon curato da Nicki. +350 punti. Pressione: -20", last.Message)

	pid, did := e.Selected()
	assert.Nil(t, pid)
	assert.Nil(t, did)
}

func TestAssign_Points(t *testing.T) {
	tests := []struct {
		name       string
		archetype  patient.Archetype
		doctor     string
		wantPoints int
		wantDrop   int
	}{
		{"medium no couple", vittorio, "Nicki", 100, 15},
		{"high no couple", cardi, "Gemma", 150, 20},
		{"low perfect couple", sara, "Elenoire", 300, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, nil, quietOptions())
			e.StartSession()
			for i := 0; i < 3; i++ {
				arrive(e, vittorio)
			}
			p := arrive(e, tt.archetype)
			before := e.State().HospitalPressure
			d, _ := e.Doctors().GetByName(tt.doctor)

			cure, err := e.AssignDirect(d.ID, p.ID)

			require.NoError(t, err)
			assert.Equal(t, tt.wantPoints, cure.Points)
			assert.Equal(t, tt.wantPoints, e.State().Score)
			assert.Equal(t, before-tt.wantDrop, e.State().HospitalPressure)
		})
	}
}

func TestAssign_Failures(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	p := arrive(e, vittorio)
	other := arrive(e, vittorio)

	_, err := e.AssignSelected()
	assert.ErrorIs(t, err, engine.ErrIncompleteSelection)
	assert.Equal(t, "Seleziona sia paziente che medico", engine.Message(err))

	_, err = e.AssignDirect(1, 99)
	assert.ErrorIs(t, err, engine.ErrPatientNotFound)

	_, err = e.AssignDirect(99, p.ID)
	assert.ErrorIs(t, err, engine.ErrDoctorNotFound)
	assert.Equal(t, "Medico non trovato", engine.Message(err))

	_, err = e.AssignDirect(1, p.ID)
	require.NoError(t, err)

	_, err = e.AssignDirect(1, other.ID)
	assert.ErrorIs(t, err, engine.ErrDoctorUnavailable)
	assert.Equal(t, "Medico non disponibile", engine.Message(err))

	_, err = e.AssignDirect(2, p.ID)
	assert.ErrorIs(t, err, engine.ErrPatientNotFound)
	assert.True(t, engine.IsUserError(err))
}

func TestAssign_AfterEndRollsBack(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	_, err := e.EndSession(context.Background(), true)
	require.NoError(t, err)
	p := e.Patients().Admit(vittorio)

	_, err = e.AssignDirect(3, p.ID)

	assert.ErrorIs(t, err, engine.ErrSessionEnded)
	assert.Equal(t, "Il gioco è terminato", engine.Message(err))
	d, _ := e.Doctors().Get(3)
	assert.True(t, d.Available)
	got, _ := e.Patients().Get(p.ID)
	assert.False(t, got.BeingTreated)
	assert.Zero(t, e.State().Score)
}

func TestGameOver_CriticalPressure(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	for i := 0; i < 7; i++ {
		arrive(e, vittorio)
	}
	arrive(e, cardi)
	require.Equal(t, 85, e.State().HospitalPressure)
	require.True(t, e.State().IsRunning)

	arrive(e, cardi)

	s := e.State()
	assert.Equal(t, 100, s.HospitalPressure)
	assert.False(t, s.IsRunning)
	assert.True(t, s.GameOver)
	assert.Equal(t, engine.ReasonCriticalPressure, s.GameOverReason)
	last := s.Notifications[len(s.Notifications)-1]
	assert.Equal(t, "💀 Game Over!", last.Title)
	assert.Equal(t, engine.NotifyError, last.Type)
	assert.Len(t, e.EventLog().GetByType(events.EventTypeGameOver), 1)
}

func TestGameOver_Collapse(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	for id := 1; id <= e.Doctors().Count(); id++ {
		p := e.Patients().Admit(sara)
		_, err := e.AssignDirect(id, p.ID)
		require.NoError(t, err)
	}
	require.Zero(t, e.Doctors().AvailableCount())
	for i := 0; i < 4; i++ {
		e.Patients().Admit(vittorio)
	}

	e.CheckGameOverConditions()

	s := e.State()
	assert.True(t, s.GameOver)
	assert.Equal(t, engine.ReasonCollapse, s.GameOverReason)
	assert.Less(t, s.HospitalPressure, engine.PressureLimit)
}

func TestGameOver_Overwhelmed(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	for i := 0; i < 5; i++ {
		e.Patients().Admit(cardi)
	}

	e.CheckGameOverConditions()

	s := e.State()
	assert.True(t, s.GameOver)
	assert.Equal(t, engine.ReasonOverwhelmed, s.GameOverReason)
}

func TestGameOver_IdempotentAndFirstReasonWins(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	for id := 1; id <= e.Doctors().Count(); id++ {
		p := e.Patients().Admit(sara)
		_, err := e.AssignDirect(id, p.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		e.Patients().Admit(cardi)
	}

	e.CheckGameOverConditions()
	before := e.State()
	e.CheckGameOverConditions()
	after := e.State()

	assert.Equal(t, engine.ReasonCollapse, after.GameOverReason)
	assert.Equal(t, 1, countTitle(after.Notifications, "💀 Game Over!"))
	assert.Equal(t, before, after)
}

func TestSelectDoctor_UnavailableKeepsSelection(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	first := arrive(e, vittorio)
	arrive(e, vittorio)
	third := arrive(e, vittorio)
	_, err := e.AssignDirect(2, first.ID)
	require.NoError(t, err)
	score := e.State().Score

	sel, err := e.SelectPatient(third.ID)
	require.NoError(t, err)
	assert.False(t, sel.Attempted)

	_, err = e.SelectDoctor(2)

	assert.ErrorIs(t, err, engine.ErrDoctorUnavailable)
	pid, did := e.Selected()
	require.NotNil(t, pid)
	assert.Equal(t, third.ID, *pid)
	assert.Nil(t, did)
	assert.Equal(t, score, e.State().Score)
}

func TestSelect_CompletingPairAssigns(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	p := arrive(e, vittorio)

	_, err := e.SelectDoctor(4)
	require.NoError(t, err)
	sel, err := e.SelectPatient(p.ID)

	require.NoError(t, err)
	assert.True(t, sel.Attempted)
	require.NoError(t, sel.AssignErr)
	require.NotNil(t, sel.Cure)
	assert.Equal(t, 4, sel.Cure.DoctorID)
	assert.Nil(t, sel.PatientID)
	assert.Nil(t, sel.DoctorID)
	assert.Equal(t, 1, e.State().CuredPatients)

	_, err = e.SelectPatient(p.ID)
	assert.ErrorIs(t, err, engine.ErrPatientNotFound)
	assert.Equal(t, "Paziente non trovato", engine.Message(err))
}

func TestNotifications_KeepLatestTwenty(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	for i := 0; i < 24; i++ {
		e.OnRandomEvent(fmt.Sprintf("event %d", i))
	}

	s := e.State()
	require.Len(t, s.Notifications, engine.NotificationCap)
	for i, n := range s.Notifications {
		assert.Equal(t, fmt.Sprintf("event %d", i+4), n.Message)
	}
	require.Len(t, s.Events, engine.EventCap)
	assert.Equal(t, "event 19", s.Events[0].Event)
	assert.Equal(t, "event 23", s.Events[4].Event)
	assert.Len(t, e.Poll().Notifications, engine.PollNotifications)
}

func TestPoll_View(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	p := arrive(e, cardi)
	_, err := e.SelectPatient(p.ID)
	require.NoError(t, err)

	v := e.Poll()

	assert.True(t, v.IsRunning)
	assert.Equal(t, 15, v.HospitalPressure)
	require.Len(t, v.Patients, 1)
	assert.Equal(t, p.Name, v.Patients[0].Name)
	assert.Len(t, v.Doctors, 7)
	require.NotNil(t, v.SelectedPatientID)
	assert.Equal(t, p.ID, *v.SelectedPatientID)
	assert.Nil(t, v.SelectedDoctorID)
}

func TestTreatmentInvariant(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	for i := 0; i < 6; i++ {
		arrive(e, vittorio)
	}
	_, err := e.AssignDirect(1, 2)
	require.NoError(t, err)
	_, err = e.AssignDirect(5, 4)
	require.NoError(t, err)

	for _, d := range e.Doctors().Busy() {
		require.NotNil(t, d.CurrentPatient, d.Name)
		assert.True(t, d.CurrentPatient.BeingTreated)
	}
	for _, d := range e.Doctors().Available() {
		assert.Nil(t, d.CurrentPatient, d.Name)
	}
	assert.Len(t, e.Patients().Available(), 4)
}

func TestRecovery_FreesDoctorAfterDelay(t *testing.T) {
	opts := quietOptions()
	opts.RecoveryDelay = 20 * time.Millisecond
	e := newEngine(t, nil, opts)
	e.StartSession()
	p := arrive(e, vittorio)
	_, err := e.AssignDirect(6, p.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		d, _ := e.Doctors().Get(6)
		return d.Available
	}, time.Second, 5*time.Millisecond)

	d, _ := e.Doctors().Get(6)
	assert.Equal(t, 1, d.Fatigue)
	assert.Nil(t, d.CurrentPatient)
	require.Eventually(t, func() bool {
		return len(e.EventLog().GetByType(events.EventTypeDoctorRecovered)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStartSession_CancelsPendingRecoveries(t *testing.T) {
	e := newEngine(t, nil, quietOptions())
	e.StartSession()
	p := arrive(e, vittorio)
	_, err := e.AssignDirect(1, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, e.Doctors().PendingRecoveries())

	e.StartSession()

	assert.Zero(t, e.Doctors().PendingRecoveries())
	assert.Equal(t, 7, e.Doctors().AvailableCount())
}

func TestEndSession_SavesSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockSessionPersister(ctrl)
	e := newEngine(t, persister, quietOptions())
	id := e.StartSession()
	p := arrive(e, vittorio)
	_, err := e.AssignDirect(1, p.ID)
	require.NoError(t, err)

	persister.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap engine.SessionSnapshot) (string, error) {
			assert.Equal(t, id, snap.SessionID)
			assert.Equal(t, 100, snap.GameState.Score)
			assert.False(t, snap.GameState.IsRunning)
			assert.Len(t, snap.Doctors, 7)
			assert.Len(t, snap.SaveTimestamp, len("20060102_150405"))
			return "saves/game_test.json", nil
		})

	res, err := e.EndSession(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, 100, res.FinalScore)
	assert.Equal(t, 1, res.CuredPatients)
	assert.False(t, res.Abandoned)
	require.NotNil(t, res.SavedFile)
	assert.Equal(t, "saves/game_test.json", *res.SavedFile)

	s := e.State()
	assert.False(t, s.IsRunning)
	assert.False(t, s.GameOver)
	last := s.Notifications[len(s.Notifications)-1]
	assert.Equal(t, "💾 Salvataggio Completato", last.Title)
	assert.Equal(t, "Partita salvata: saves/game_test.json", last.Message)
	assert.Zero(t, countTitle(s.Notifications, "🏳️ Gioco Abbandonato"))
	assert.Len(t, e.EventLog().GetByType(events.EventTypeSessionEnded), 1)
}

func TestEndSession_AbandonWithSaveFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockSessionPersister(ctrl)
	e := newEngine(t, persister, quietOptions())
	e.StartSession()
	arrive(e, cardi)

	persister.EXPECT().Save(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))

	res, err := e.EndSession(context.Background(), false)

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrPersistenceFailure)
	assert.True(t, res.Abandoned)
	assert.Nil(t, res.SavedFile)

	notes := e.State().Notifications
	require.GreaterOrEqual(t, len(notes), 2)
	assert.Equal(t, "🏳️ Gioco Abbandonato", notes[len(notes)-2].Title)
	assert.Equal(t, "❌ Errore Salvataggio", notes[len(notes)-1].Title)
	assert.Equal(t, "Impossibile salvare la partita: disk full", notes[len(notes)-1].Message)
}

func TestSession_BackgroundLoopsProduce(t *testing.T) {
	opts := quietOptions()
	opts.ArrivalMin, opts.ArrivalMax = 2*time.Millisecond, 5*time.Millisecond
	opts.EventMin, opts.EventMax = 2*time.Millisecond, 5*time.Millisecond
	opts.TickRate = 2 * time.Millisecond
	e := newEngine(t, nil, opts)
	e.StartSession()

	require.Eventually(t, func() bool {
		return len(e.EventLog().GetByType(events.EventTypePatientArrived)) > 0 &&
			len(e.EventLog().GetByType(events.EventTypeRandomEvent)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	// Arrivals alone push pressure past the limit within a dozen patients.
	require.Eventually(t, func() bool { return e.State().GameOver }, 2*time.Second, 5*time.Millisecond)
	s := e.State()
	assert.Equal(t, engine.ReasonCriticalPressure, s.GameOverReason)
	assert.GreaterOrEqual(t, s.HospitalPressure, engine.PressureLimit)

	count := e.Patients().Count()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, e.Patients().Count(), count+1, "at most one in-flight arrival after stop")
}

func TestSession_ClockAdvancesWhileRunning(t *testing.T) {
	opts := quietOptions()
	opts.TickRate = 2 * time.Millisecond
	e := newEngine(t, nil, opts)
	e.StartSession()

	require.Eventually(t, func() bool { return e.State().GameTime >= 3 }, time.Second, 2*time.Millisecond)

	res, err := e.EndSession(context.Background(), true)
	require.NoError(t, err)
	frozen := e.State().GameTime
	assert.GreaterOrEqual(t, res.GameTime, int64(3))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, e.State().GameTime)
}
