package engine

import "errors"

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrDoctorNotFound        = errors.New("doctor not found")
	ErrDoctorUnavailable     = errors.New("doctor unavailable")
	ErrIncompleteSelection   = errors.New("select both a patient and a doctor")
	ErrPatientAlreadyTreated = errors.New("patient already being treated")
	ErrSessionEnded          = errors.New("session ended")
	ErrPersistenceFailure    = errors.New("session save failed")
)

// Failure carries the message shown to the player alongside the sentinel error.
type Failure struct {
	Err     error
	Message string
}

func (f *Failure) Error() string { return f.Err.Error() + ": " + f.Message }

func (f *Failure) Unwrap() error { return f.Err }

func fail(err error, msg string) error {
	return &Failure{Err: err, Message: msg}
}

// Message returns the player-facing text for err.
func Message(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return "Paziente non trovato"
	case errors.Is(err, ErrDoctorNotFound):
		return "Medico non trovato"
	case errors.Is(err, ErrDoctorUnavailable):
		return "Medico non disponibile"
	case errors.Is(err, ErrIncompleteSelection):
		return "Seleziona sia paziente che medico"
	case errors.Is(err, ErrPatientAlreadyTreated):
		return "Questo paziente è già in trattamento"
	case errors.Is(err, ErrSessionEnded):
		return "Il gioco è terminato"
	case errors.Is(err, ErrPersistenceFailure):
		return "Impossibile salvare la partita"
	case err == nil:
		return ""
	}
	return err.Error()
}
