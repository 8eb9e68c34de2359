package engine

//go:generate mockgen -source=persist.go -destination=mocks/mock_persist.go -package=mocks

import (
	"context"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
)

// SessionSnapshot is everything saved when a session ends.
type SessionSnapshot struct {
	SessionID         string            `json:"session_id"`
	GameState         State             `json:"game_state"`
	SelectedPatientID *int              `json:"selected_patient_id"`
	SelectedDoctorID  *int              `json:"selected_doctor_id"`
	Patients          []patient.Patient `json:"patients"`
	Doctors           []DoctorView      `json:"doctors"`
	SaveTimestamp     string            `json:"save_timestamp"` // 20060102_150405
	SaveDate          string            `json:"save_date"`      // RFC 3339
}

// SessionPersister stores a finished session and returns where it went.
type SessionPersister interface {
	Save(ctx context.Context, snap SessionSnapshot) (string, error)
}
