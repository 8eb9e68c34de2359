// Package engine contains the game-state coordination of an ER session.
//
// Lock order: assignMu -> mu -> registry locks. selMu is a leaf and is never
// held while acquiring another lock. Registries never call back into the
// Engine while holding their own lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/doctor"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/metrics"
)

// GameOverReason names the rule that ended a session.
type GameOverReason string

const (
	ReasonCriticalPressure GameOverReason = "critical_pressure"
	ReasonCollapse         GameOverReason = "collapse"
	ReasonOverwhelmed      GameOverReason = "overwhelmed"
)

// Message is the text of the game-over notification.
func (r GameOverReason) Message() string {
	switch r {
	case ReasonCriticalPressure:
		return "La pressione del pronto soccorso ha raggiunto il livello critico!"
	case ReasonCollapse:
		return "Il pronto soccorso è collassato!"
	case ReasonOverwhelmed:
		return "Troppe emergenze in attesa: il pronto soccorso è sopraffatto!"
	}
	return string(r)
}

// State is the session-wide mutable state.
type State struct {
	SessionID        string         `json:"session_id"`
	Score            int            `json:"score"`
	CuredPatients    int            `json:"cured_patients"`
	GameTime         int64          `json:"game_time"`
	IsRunning        bool           `json:"is_running"`
	GameOver         bool           `json:"game_over"`
	GameOverReason   GameOverReason `json:"game_over_reason,omitempty"`
	HospitalPressure int            `json:"hospital_pressure"`
	Notifications    []Notification `json:"notifications"`
	Events           []EventRecord  `json:"events"`
	StartedAt        time.Time      `json:"started_at"`
}

// GameView is the answer to a state poll.
type GameView struct {
	State
	Patients          []patient.Patient `json:"patients"`
	Doctors           []DoctorView      `json:"doctors"`
	SelectedPatientID *int              `json:"selected_patient_id"`
	SelectedDoctorID  *int              `json:"selected_doctor_id"`
}

// Cure describes a successful assignment.
type Cure struct {
	PatientID     int    `json:"patient_id"`
	PatientName   string `json:"patient_name"`
	DoctorID      int    `json:"doctor_id"`
	DoctorName    string `json:"doctor_name"`
	Points        int    `json:"points"`
	PressureDrop  int    `json:"pressure_drop"`
	PerfectCouple bool   `json:"perfect_couple"`
}

// Selection reports a selection and, when it completed a pair, the
// assignment it triggered.
type Selection struct {
	PatientID *int
	DoctorID  *int
	Attempted bool
	Cure      *Cure
	AssignErr error
}

// EndResult holds the final statistics of a session. It is valid even when
// saving failed.
type EndResult struct {
	SessionID     string  `json:"session_id"`
	FinalScore    int     `json:"final_score"`
	CuredPatients int     `json:"cured_patients"`
	GameTime      int64   `json:"game_time"`
	SavedFile     *string `json:"saved_file"`
	Abandoned     bool    `json:"abandoned"`
}

// Engine coordinates one ER session at a time.
type Engine struct {
	assignMu sync.Mutex

	mu      sync.Mutex
	state   State
	rootCtx context.Context
	cancel  context.CancelFunc
	ticker  *Ticker

	selMu           sync.Mutex
	selectedPatient *int
	selectedDoctor  *int

	patients  atomic.Pointer[PatientRegistry]
	doctors   *DoctorRegistry
	generator *Generator

	eventLog  *events.EventLog
	persister SessionPersister
	logger    *logger.Logger
	metrics   *metrics.Collector
	opts      Options
}

// NewEngine wires a coordinator. persister may be nil, in which case ended
// sessions are not saved.
func NewEngine(eventLog *events.EventLog, persister SessionPersister, log *logger.Logger, opts Options) *Engine {
	opts = opts.withDefaults()
	if eventLog == nil {
		eventLog = events.NewEventLog(nil)
	}
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		rootCtx:   context.Background(),
		doctors:   NewDoctorRegistry(opts.RecoveryDelay, opts.Now),
		generator: NewGenerator(opts, log),
		eventLog:  eventLog,
		persister: persister,
		logger:    log,
		metrics:   opts.Metrics,
		opts:      opts,
	}
	e.patients.Store(NewPatientRegistry(opts.Rand, opts.Now))
	e.doctors.OnRecovered(e.onDoctorRecovered)
	return e
}

// Start binds the lifetime of every future session to ctx.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rootCtx = ctx
	e.logger.Info("ER engine ready. Waiting for the first shift...")
}

// Shutdown stops the running session's loops without saving it.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.state.IsRunning = false
	e.stopLoopsLocked()
	e.mu.Unlock()
	e.generator.Wait()
}

// Patients returns the registry of the current session.
func (e *Engine) Patients() *PatientRegistry { return e.patients.Load() }

// Doctors returns the staff registry.
func (e *Engine) Doctors() *DoctorRegistry { return e.doctors }

// EventLog returns the game-event journal.
func (e *Engine) EventLog() *events.EventLog { return e.eventLog }

// StartSession resets everything and starts a new session. A running
// session is superseded: its loops stop and pending recoveries are cancelled.
func (e *Engine) StartSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLoopsLocked()

	now := e.opts.Now()
	e.state = State{
		SessionID:     uuid.NewString(),
		IsRunning:     true,
		StartedAt:     now,
		Notifications: []Notification{},
		Events:        []EventRecord{},
	}
	patients := NewPatientRegistry(e.opts.Rand, e.opts.Now)
	e.patients.Store(patients)
	e.doctors.ResetAll()
	e.setSelection(nil, nil)

	ctx, cancel := context.WithCancel(e.rootCtx)
	e.cancel = cancel
	e.ticker = NewTicker(e.opts.TickRate, e.IsRunning, e.logger)
	go e.ticker.Start(ctx)
	e.generator.Start(ctx, patients, e.OnPatientArrival, e.OnRandomEvent)

	e.notifyLocked("🏥 Gioco Iniziato!", "I pazienti stanno arrivando...", NotifySuccess)
	e.journalLocked(events.EventTypeSessionStarted, "PLAYER", "", nil)
	e.metrics.RecordSessionStarted()
	e.logger.Event(string(events.EventTypeSessionStarted), "PLAYER", "session "+e.state.SessionID)
	return e.state.SessionID
}

// stopLoopsLocked cancels the session context. Must hold e.mu.
func (e *Engine) stopLoopsLocked() {
	e.generator.Stop()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// IsRunning reports whether a session is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsRunning
}

// OnPatientArrival applies the pressure of a new patient.
func (e *Engine) OnPatientArrival(p patient.Patient) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.IsRunning {
		return
	}
	e.state.HospitalPressure += p.ArrivalPressure()
	e.notifyLocked("🚑 Nuovo Paziente Arrivato", p.Name+" - "+p.Condition, NotifyInfo)
	e.journalLocked(events.EventTypePatientArrived, "ARRIVALS", strconv.Itoa(p.ID), map[string]interface{}{
		"name":      p.Name,
		"condition": p.Condition,
		"urgency":   p.Urgency,
		"pressure":  e.state.HospitalPressure,
	})
	e.metrics.RecordArrival()
	e.logger.Event(string(events.EventTypePatientArrived), "ARRIVALS",
		fmt.Sprintf("%s (%s), pressure %d", p.Name, p.Urgency, e.state.HospitalPressure))

	if e.state.HospitalPressure >= PressureLimit {
		e.triggerGameOverLocked(ReasonCriticalPressure)
	}
}

// OnRandomEvent records a decorative event. It has no effect on the rules.
func (e *Engine) OnRandomEvent(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.opts.Now()
	e.notifyLocked("⚡ Evento Speciale", text, NotifyWarning)
	e.state.Events = pushEvent(e.state.Events, text, now)
	e.journalLocked(events.EventTypeRandomEvent, "SYSTEM", "", map[string]interface{}{"text": text})
	e.metrics.RecordRandomEvent()
	e.logger.Event(string(events.EventTypeRandomEvent), "SYSTEM", text)
}

// SelectPatient records the patient choice and assigns when a doctor is
// already selected.
func (e *Engine) SelectPatient(id int) (Selection, error) {
	if _, ok := e.patients.Load().Get(id); !ok {
		return Selection{}, fail(ErrPatientNotFound, "Paziente non trovato")
	}
	e.selMu.Lock()
	e.selectedPatient = &id
	complete := e.selectedDoctor != nil
	e.selMu.Unlock()

	return e.afterSelect(complete), nil
}

// SelectDoctor records the doctor choice and assigns when a patient is
// already selected. A busy doctor is rejected and the selection is untouched.
func (e *Engine) SelectDoctor(id int) (Selection, error) {
	d, ok := e.doctors.Get(id)
	if !ok {
		return Selection{}, fail(ErrDoctorNotFound, "Medico non trovato")
	}
	if !d.Available {
		return Selection{}, fail(ErrDoctorUnavailable, "Medico non disponibile")
	}
	e.selMu.Lock()
	e.selectedDoctor = &id
	complete := e.selectedPatient != nil
	e.selMu.Unlock()

	return e.afterSelect(complete), nil
}

func (e *Engine) afterSelect(complete bool) Selection {
	var sel Selection
	if complete {
		sel.Attempted = true
		cure, err := e.AssignSelected()
		if err == nil {
			sel.Cure = &cure
		}
		sel.AssignErr = err
	}
	sel.PatientID, sel.DoctorID = e.Selected()
	return sel
}

// Selected returns the current selections.
func (e *Engine) Selected() (patientID, doctorID *int) {
	e.selMu.Lock()
	defer e.selMu.Unlock()
	return copyID(e.selectedPatient), copyID(e.selectedDoctor)
}

func (e *Engine) setSelection(patientID, doctorID *int) {
	e.selMu.Lock()
	defer e.selMu.Unlock()
	e.selectedPatient, e.selectedDoctor = copyID(patientID), copyID(doctorID)
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// AssignDirect selects both sides and assigns them.
func (e *Engine) AssignDirect(doctorID, patientID int) (Cure, error) {
	e.setSelection(&patientID, &doctorID)
	if _, ok := e.patients.Load().Get(patientID); !ok {
		e.metrics.RecordAssignFailure()
		return Cure{}, fail(ErrPatientNotFound, "Paziente non trovato")
	}
	return e.AssignSelected()
}

// AssignSelected runs the assignment protocol on the current selection.
func (e *Engine) AssignSelected() (Cure, error) {
	e.assignMu.Lock()
	defer e.assignMu.Unlock()

	cure, err := e.assign()
	if err != nil {
		e.metrics.RecordAssignFailure()
		e.logger.Warn("Assignment rejected: " + err.Error())
	}
	return cure, err
}

func (e *Engine) assign() (Cure, error) {
	patientID, doctorID := e.Selected()
	if patientID == nil || doctorID == nil {
		return Cure{}, fail(ErrIncompleteSelection, "Seleziona sia paziente che medico")
	}

	patients := e.patients.Load()
	p, ok := patients.Get(*patientID)
	if !ok {
		return Cure{}, fail(ErrPatientNotFound, "Il paziente selezionato non è più disponibile")
	}
	if p.BeingTreated {
		return Cure{}, fail(ErrPatientAlreadyTreated, "Questo paziente è già in trattamento")
	}
	d, ok := e.doctors.Get(*doctorID)
	if !ok {
		return Cure{}, fail(ErrDoctorNotFound, "Medico non trovato")
	}
	if !d.Available {
		return Cure{}, fail(ErrDoctorUnavailable, "Medico non disponibile")
	}

	if err := e.doctors.Assign(d.ID, p); err != nil {
		return Cure{}, fail(err, Message(err))
	}
	if err := patients.MarkTreated(p.ID); err != nil {
		e.doctors.Release(d.ID)
		return Cure{}, fail(err, Message(err))
	}

	cure := Cure{
		PatientID:     p.ID,
		PatientName:   p.Name,
		DoctorID:      d.ID,
		DoctorName:    d.Name,
		PerfectCouple: e.doctors.CheckPerfectCouple(p.Name, d.Name),
		PressureDrop:  p.CurePressure(),
	}
	cure.Points = BaseCurePoints
	if cure.PerfectCouple {
		cure.Points = PerfectCouplePoints
	}
	if p.IsHighUrgency() {
		cure.Points += HighUrgencyBonus
	}

	e.mu.Lock()
	if !e.state.IsRunning {
		e.mu.Unlock()
		patients.ClearTreated(p.ID)
		e.doctors.Release(d.ID)
		return Cure{}, fail(ErrSessionEnded, "Il gioco è terminato")
	}
	e.state.Score += cure.Points
	e.state.CuredPatients++
	e.state.HospitalPressure = max(0, e.state.HospitalPressure-cure.PressureDrop)
	e.mu.Unlock()

	// Score is already visible here while the patient is still listed.
	patients.Remove(p.ID)

	e.mu.Lock()
	title, typ := "✅ Paziente Curato!", NotifySuccess
	if cure.PerfectCouple {
		title, typ = title+" 💕 Coppia Perfetta!", NotifyCouple
	}
	e.notifyLocked(title, fmt.Sprintf("%s curato da %s. +%d punti. Pressione: -%d",
		p.Name, d.Name, cure.Points, cure.PressureDrop), typ)
	e.journalLocked(events.EventTypePatientCured, "DOCTOR_"+strconv.Itoa(d.ID), strconv.Itoa(p.ID), cure)
	e.mu.Unlock()

	e.metrics.RecordCure(cure.PerfectCouple)
	e.logger.Event(string(events.EventTypePatientCured), d.Name,
		fmt.Sprintf("%s cured, +%d points", p.Name, cure.Points))

	e.setSelection(nil, nil)
	e.CheckGameOverConditions()
	return cure, nil
}

// CheckGameOverConditions ends the session when one of the rules matches.
// It is a no-op when the session is not running.
func (e *Engine) CheckGameOverConditions() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.IsRunning {
		return
	}
	patients := e.patients.Load()
	if e.state.HospitalPressure >= PressureLimit {
		e.triggerGameOverLocked(ReasonCriticalPressure)
	}
	if e.doctors.AvailableCount() == 0 && patients.Count() > CollapsePatientCount {
		e.triggerGameOverLocked(ReasonCollapse)
	}
	if patients.CountHighUrgency() >= OverwhelmedHighCount {
		e.triggerGameOverLocked(ReasonOverwhelmed)
	}
}

// triggerGameOverLocked must be called with e.mu held. Only the first
// trigger of a session has any effect. Pending recoveries are left to fire.
func (e *Engine) triggerGameOverLocked(reason GameOverReason) {
	if e.state.GameOver {
		return
	}
	e.state.IsRunning = false
	e.state.GameOver = true
	e.state.GameOverReason = reason
	e.stopLoopsLocked()

	e.notifyLocked("💀 Game Over!", reason.Message(), NotifyError)
	e.journalLocked(events.EventTypeGameOver, "SYSTEM", "", map[string]interface{}{
		"reason":   reason,
		"score":    e.state.Score,
		"pressure": e.state.HospitalPressure,
	})
	e.metrics.RecordGameOver()
	e.logger.Event(string(events.EventTypeGameOver), "SYSTEM", string(reason))
}

// Poll applies the critical-pressure gate and returns the game view with
// the last five notifications.
func (e *Engine) Poll() GameView {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.IsRunning && e.state.HospitalPressure >= PressureLimit {
		e.triggerGameOverLocked(ReasonCriticalPressure)
	}
	view := GameView{
		State:    e.stateLocked(),
		Patients: e.patients.Load().Snapshot(),
		Doctors:  e.doctors.Snapshot(),
	}
	view.Notifications = lastNotifications(view.Notifications, PollNotifications)
	view.SelectedPatientID, view.SelectedDoctorID = e.Selected()
	return view
}

// State returns a copy of the full session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	s := e.state
	s.GameTime = e.elapsedLocked()
	s.Notifications = append([]Notification{}, e.state.Notifications...)
	s.Events = append([]EventRecord{}, e.state.Events...)
	return s
}

func (e *Engine) elapsedLocked() int64 {
	if e.ticker == nil {
		return 0
	}
	return e.ticker.Elapsed()
}

// EndSession stops the session, saves it and returns the final statistics.
// An abandoned session gets an extra notification before saving. A save
// failure is returned wrapped in ErrPersistenceFailure alongside a complete
// result.
func (e *Engine) EndSession(ctx context.Context, graceful bool) (EndResult, error) {
	e.mu.Lock()
	e.state.IsRunning = false
	e.generator.Stop()
	if !graceful {
		e.notifyLocked("🏳️ Gioco Abbandonato", "Hai deciso di abbandonare la partita", NotifyWarning)
	}
	ticker := e.ticker
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	if ticker != nil && !ticker.Wait(e.opts.TimerJoinTimeout) {
		e.logger.Warn("Session clock did not stop in time; saving anyway.")
	}

	snap := e.Snapshot()
	result := EndResult{
		SessionID:     snap.SessionID,
		FinalScore:    snap.GameState.Score,
		CuredPatients: snap.GameState.CuredPatients,
		GameTime:      snap.GameState.GameTime,
		Abandoned:     !graceful,
	}

	var saveErr error
	if e.persister != nil {
		start := time.Now()
		location, err := e.persister.Save(ctx, snap)
		e.metrics.RecordSave(time.Since(start), err)

		e.mu.Lock()
		if err != nil {
			saveErr = fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
			e.notifyLocked("❌ Errore Salvataggio", "Impossibile salvare la partita: "+err.Error(), NotifyError)
			e.logger.Error("Session save failed", err)
		} else {
			result.SavedFile = &location
			e.notifyLocked("💾 Salvataggio Completato", "Partita salvata: "+location, NotifySuccess)
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.journalLocked(events.EventTypeSessionEnded, "PLAYER", "", result)
	e.mu.Unlock()

	e.metrics.RecordSessionEnded()
	e.logger.Event(string(events.EventTypeSessionEnded), "PLAYER",
		fmt.Sprintf("score %d, cured %d, %ds", result.FinalScore, result.CuredPatients, result.GameTime))
	return result, saveErr
}

// Snapshot captures the session for saving.
func (e *Engine) Snapshot() SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.opts.Now()
	snap := SessionSnapshot{
		SessionID:     e.state.SessionID,
		GameState:     e.stateLocked(),
		Patients:      e.patients.Load().Snapshot(),
		Doctors:       e.doctors.Snapshot(),
		SaveTimestamp: now.Format("20060102_150405"),
		SaveDate:      now.Format(time.RFC3339),
	}
	snap.SelectedPatientID, snap.SelectedDoctorID = e.Selected()
	return snap
}

func (e *Engine) onDoctorRecovered(d doctor.Doctor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.journalLocked(events.EventTypeDoctorRecovered, "DOCTOR_"+strconv.Itoa(d.ID), "", map[string]interface{}{
		"name":    d.Name,
		"fatigue": d.Fatigue,
	})
	e.logger.Debug(d.Name + " is available again")
}

// notifyLocked must be called with e.mu held.
func (e *Engine) notifyLocked(title, message string, typ NotificationType) {
	e.state.Notifications = pushNotification(e.state.Notifications, title, message, typ, e.opts.Now())
}

// journalLocked must be called with e.mu held.
func (e *Engine) journalLocked(typ events.EventType, actor, target string, payload interface{}) {
	e.eventLog.Append(events.GameEvent{
		SessionID: e.state.SessionID,
		Type:      typ,
		ActorID:   actor,
		TargetID:  target,
		Payload:   payload,
		GameTime:  e.elapsedLocked(),
	})
}

// IsUserError reports whether err belongs to the rules taxonomy rather
// than an infrastructure fault.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrPatientNotFound, ErrDoctorNotFound, ErrDoctorUnavailable,
		ErrIncompleteSelection, ErrPatientAlreadyTreated, ErrSessionEnded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
