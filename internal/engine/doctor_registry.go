package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/doctor"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
)

// DoctorRegistry holds the fixed staff and their treatment timers.
type DoctorRegistry struct {
	mu      sync.RWMutex
	doctors []*doctor.Doctor

	recovery   time.Duration
	timers     map[int]*time.Timer
	generation uint64 // Bumped by ResetAll; stale timers compare against it
	now        func() time.Time

	onRecovered func(doctor.Doctor)
}

// NewDoctorRegistry builds the roster with ids 1..n, all available.
func NewDoctorRegistry(recovery time.Duration, now func() time.Time) *DoctorRegistry {
	if now == nil {
		now = time.Now
	}
	r := &DoctorRegistry{
		recovery: recovery,
		timers:   make(map[int]*time.Timer),
		now:      now,
	}
	for i, p := range doctor.Roster {
		r.doctors = append(r.doctors, doctor.New(i+1, p))
	}
	return r
}

// OnRecovered registers a callback fired, outside the registry lock, after a
// doctor finishes a treatment.
func (r *DoctorRegistry) OnRecovered(fn func(doctor.Doctor)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecovered = fn
}

func (r *DoctorRegistry) find(id int) *doctor.Doctor {
	d, _ := lo.Find(r.doctors, func(d *doctor.Doctor) bool { return d.ID == id })
	return d
}

// Get returns a copy of the doctor with the given id.
func (r *DoctorRegistry) Get(id int) (doctor.Doctor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d := r.find(id); d != nil {
		return *d, true
	}
	return doctor.Doctor{}, false
}

// GetByName returns a copy of the doctor with the given name.
func (r *DoctorRegistry) GetByName(name string) (doctor.Doctor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := lo.Find(r.doctors, func(d *doctor.Doctor) bool { return d.Name == name })
	if !ok {
		return doctor.Doctor{}, false
	}
	return *d, true
}

// Available returns the doctors free to take a patient.
func (r *DoctorRegistry) Available() []doctor.Doctor {
	return r.filter(func(d *doctor.Doctor) bool { return d.Available })
}

// Busy returns the doctors in treatment.
func (r *DoctorRegistry) Busy() []doctor.Doctor {
	return r.filter(func(d *doctor.Doctor) bool { return !d.Available })
}

// AvailableSorted lists available doctors with the rested ones (fatigue < 3) first.
func (r *DoctorRegistry) AvailableSorted() []doctor.Doctor {
	out := r.Available()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fatigue < 3 && out[j].Fatigue >= 3
	})
	return out
}

func (r *DoctorRegistry) filter(keep func(*doctor.Doctor) bool) []doctor.Doctor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(r.doctors, func(d *doctor.Doctor, _ int) (doctor.Doctor, bool) {
		return *d, keep(d)
	})
}

// Count returns the roster size.
func (r *DoctorRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doctors)
}

// AvailableCount returns how many doctors are free.
func (r *DoctorRegistry) AvailableCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.CountBy(r.doctors, func(d *doctor.Doctor) bool { return d.Available })
}

// Assign puts the doctor in treatment with p and schedules the recovery.
func (r *DoctorRegistry) Assign(doctorID int, p patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.find(doctorID)
	if d == nil {
		return ErrDoctorNotFound
	}
	if !d.Available {
		return ErrDoctorUnavailable
	}

	p.BeingTreated = true
	start := r.now()
	d.Available = false
	d.CurrentPatient = &p
	d.TreatmentStart = &start

	gen := r.generation
	r.timers[doctorID] = time.AfterFunc(r.recovery, func() { r.recover(doctorID, gen) })
	return nil
}

// Release frees a doctor without counting a treatment. Used to roll back a
// failed assignment.
func (r *DoctorRegistry) Release(doctorID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[doctorID]; ok {
		t.Stop()
		delete(r.timers, doctorID)
	}
	if d := r.find(doctorID); d != nil {
		d.Available = true
		d.CurrentPatient = nil
		d.TreatmentStart = nil
	}
}

func (r *DoctorRegistry) recover(doctorID int, gen uint64) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	delete(r.timers, doctorID)
	d := r.find(doctorID)
	if d == nil || d.Available {
		r.mu.Unlock()
		return
	}
	d.Available = true
	d.CurrentPatient = nil
	d.TreatmentStart = nil
	d.Fatigue++
	recovered := *d
	hook := r.onRecovered
	r.mu.Unlock()

	if hook != nil {
		hook(recovered)
	}
}

// PendingRecoveries returns the number of scheduled recoveries.
func (r *DoctorRegistry) PendingRecoveries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers)
}

// ResetAll cancels pending recoveries and restores every doctor.
func (r *DoctorRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	for _, d := range r.doctors {
		d.Reset()
	}
}

// CheckPerfectCouple reports whether the pair earns the couple bonus.
func (r *DoctorRegistry) CheckPerfectCouple(patientName, doctorName string) bool {
	return doctor.IsPerfectCouple(patientName, doctorName)
}

// DoctorView is the wire form of a doctor.
type DoctorView struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	Specialty        string     `json:"specialty"`
	ImageURL         string     `json:"image_url"`
	Available        bool       `json:"available"`
	Fatigue          int        `json:"fatigue"`
	CurrentPatientID *int       `json:"current_patient_id"`
	TreatmentStart   *time.Time `json:"treatment_start,omitempty"`
}

// Snapshot returns the wire form of every doctor in roster order.
func (r *DoctorRegistry) Snapshot() []DoctorView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.doctors, func(d *doctor.Doctor, _ int) DoctorView {
		return DoctorView{
			ID:               d.ID,
			Name:             d.Name,
			Specialty:        d.Specialty,
			ImageURL:         d.ImageURL,
			Available:        d.Available,
			Fatigue:          d.Fatigue,
			CurrentPatientID: d.CurrentPatientID(),
			TreatmentStart:   d.TreatmentStart,
		}
	})
}
