package engine

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
)

// PatientRegistry holds the patients currently in the ER.
// Each session owns a fresh registry so ids restart from 1.
type PatientRegistry struct {
	mu       sync.RWMutex
	patients []*patient.Patient
	counter  int

	rng Randomizer
	now func() time.Time
}

// NewPatientRegistry creates an empty registry.
func NewPatientRegistry(rng Randomizer, now func() time.Time) *PatientRegistry {
	if rng == nil {
		rng = globalRand{}
	}
	if now == nil {
		now = time.Now
	}
	return &PatientRegistry{rng: rng, now: now}
}

// Generate admits a patient built from a uniformly chosen catalog archetype.
func (r *PatientRegistry) Generate() patient.Patient {
	return r.Admit(patient.Catalog[r.rng.IntN(len(patient.Catalog))])
}

// Admit adds a patient built from a.
func (r *PatientRegistry) Admit(a patient.Archetype) patient.Patient {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter++
	p := patient.New(r.counter, a, r.now())
	r.patients = append(r.patients, p)
	return *p
}

// Get returns a copy of the patient with the given id.
func (r *PatientRegistry) Get(id int) (patient.Patient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := lo.Find(r.patients, func(p *patient.Patient) bool { return p.ID == id })
	if !ok {
		return patient.Patient{}, false
	}
	return *p, true
}

// Remove deletes the patient. Removing an unknown id is a no-op.
func (r *PatientRegistry) Remove(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.patients)
	r.patients = lo.Reject(r.patients, func(p *patient.Patient, _ int) bool { return p.ID == id })
	return len(r.patients) != before
}

// MarkTreated flags the patient as in treatment. It fails if the patient is
// gone or already flagged, so two assignments can never claim the same patient.
func (r *PatientRegistry) MarkTreated(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := lo.Find(r.patients, func(p *patient.Patient) bool { return p.ID == id })
	if !ok {
		return ErrPatientNotFound
	}
	if p.BeingTreated {
		return ErrPatientAlreadyTreated
	}
	p.BeingTreated = true
	return nil
}

// ClearTreated undoes MarkTreated for a rolled back assignment.
func (r *PatientRegistry) ClearTreated(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := lo.Find(r.patients, func(p *patient.Patient) bool { return p.ID == id }); ok {
		p.BeingTreated = false
	}
}

// Count returns the number of patients in the ER, treated or not.
func (r *PatientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patients)
}

// CountHighUrgency counts high-urgency patients, treated or not.
func (r *PatientRegistry) CountHighUrgency() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.CountBy(r.patients, func(p *patient.Patient) bool { return p.IsHighUrgency() })
}

// Available returns the patients waiting for a doctor.
func (r *PatientRegistry) Available() []patient.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(r.patients, func(p *patient.Patient, _ int) (patient.Patient, bool) {
		return *p, !p.BeingTreated
	})
}

// Snapshot returns copies of every patient in arrival order.
func (r *PatientRegistry) Snapshot() []patient.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.patients, func(p *patient.Patient, _ int) patient.Patient { return *p })
}
