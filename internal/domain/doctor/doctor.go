// Package doctor defines the ER staff and the "perfect couple" pairings.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package doctor

import (
	"strings"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
)

// Profile is one entry of the fixed doctor roster.
type Profile struct {
	Name      string
	Specialty string
	ImageURL  string
}

// Doctor represents a member of the staff and its treatment status.
type Doctor struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	ImageURL  string `json:"image_url"`

	Available      bool             `json:"available"`
	Fatigue        int              `json:"fatigue"` // Treatments completed this session, never decremented
	CurrentPatient *patient.Patient `json:"-"`       // Set iff Available is false
	TreatmentStart *time.Time       `json:"treatment_start,omitempty"`
}

// New creates an available, rested doctor from a roster profile.
func New(id int, p Profile) *Doctor {
	return &Doctor{
		ID:        id,
		Name:      p.Name,
		Specialty: p.Specialty,
		ImageURL:  p.ImageURL,
		Available: true,
	}
}

// Reset puts the doctor back to the start-of-session state.
func (d *Doctor) Reset() {
	d.Available = true
	d.Fatigue = 0
	d.CurrentPatient = nil
	d.TreatmentStart = nil
}

// CurrentPatientID returns the id of the patient in treatment, or nil.
func (d *Doctor) CurrentPatientID() *int {
	if d.CurrentPatient == nil {
		return nil
	}
	id := d.CurrentPatient.ID
	return &id
}

// Couple pairs a patient first name with the doctor that cures them best.
type Couple struct {
	Patient string
	Doctor  string
}

// IsPerfectCouple reports whether the first token of patientName and doctorName form a known pair.
func IsPerfectCouple(patientName, doctorName string) bool {
	fields := strings.Fields(patientName)
	if len(fields) == 0 {
		return false
	}
	first := fields[0]
	for _, c := range PerfectCouples {
		if c.Patient == first && c.Doctor == doctorName {
			return true
		}
	}
	return false
}
