package network

import (
	"context"
	"errors"
	"strings"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
)

// Game is the part of the engine the presentation layer drives.
type Game interface {
	StartSession() string
	Poll() engine.GameView
	SelectPatient(id int) (engine.Selection, error)
	SelectDoctor(id int) (engine.Selection, error)
	AssignDirect(doctorID, patientID int) (engine.Cure, error)
	EndSession(ctx context.Context, graceful bool) (engine.EndResult, error)
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the status/message pair returned by every mutating operation.
type Response struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Cure    *engine.Cure `json:"cure,omitempty"`
}

// EndResponse is returned when a session ends or is abandoned.
type EndResponse struct {
	Status        string  `json:"status"`
	FinalScore    int     `json:"final_score"`
	CuredPatients int     `json:"cured_patients"`
	GameTime      int64   `json:"game_time"`
	SavedFile     *string `json:"saved_file"`
	Message       string  `json:"message,omitempty"`
}

// Action is an incoming command, from HTTP or a websocket frame.
type Action struct {
	Type      string `json:"type"` // START, POLL, SELECT_PATIENT, SELECT_DOCTOR, ASSIGN, END, ABANDON
	PatientID int    `json:"patient_id,omitempty"`
	DoctorID  int    `json:"doctor_id,omitempty"`
}

// ErrUnknownAction is returned for an Action type nobody handles.
var ErrUnknownAction = errors.New("unknown action")

func failure(err error) Response {
	return Response{Status: StatusError, Message: engine.Message(err)}
}

func success(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

// dispatch runs one action against game. The result is always a value to
// send back: rule violations become an error status, never a Go error.
func dispatch(ctx context.Context, game Game, a Action) (interface{}, error) {
	switch strings.ToUpper(a.Type) {
	case "START":
		game.StartSession()
		return success("Gioco avviato"), nil
	case "POLL":
		return game.Poll(), nil
	case "SELECT_PATIENT":
		return selectResponse(game.SelectPatient(a.PatientID))("Paziente selezionato"), nil
	case "SELECT_DOCTOR":
		return selectResponse(game.SelectDoctor(a.DoctorID))("Medico selezionato"), nil
	case "ASSIGN":
		cure, err := game.AssignDirect(a.DoctorID, a.PatientID)
		if err != nil {
			return failure(err), nil
		}
		resp := success("Paziente assegnato con successo")
		resp.Cure = &cure
		return resp, nil
	case "END":
		return endResponse(game.EndSession(ctx, true)), nil
	case "ABANDON":
		return endResponse(game.EndSession(ctx, false)), nil
	}
	return nil, ErrUnknownAction
}

func selectResponse(sel engine.Selection, err error) func(string) Response {
	return func(message string) Response {
		if err != nil {
			return failure(err)
		}
		resp := success(message)
		if sel.Attempted {
			if sel.AssignErr != nil {
				return failure(sel.AssignErr)
			}
			resp.Message = "Paziente curato con successo"
			resp.Cure = sel.Cure
		}
		return resp
	}
}

// endResponse reports success even when the save failed; the failure is in
// the notification log and saved_file stays null.
func endResponse(res engine.EndResult, err error) EndResponse {
	out := EndResponse{
		Status:        StatusSuccess,
		FinalScore:    res.FinalScore,
		CuredPatients: res.CuredPatients,
		GameTime:      res.GameTime,
		SavedFile:     res.SavedFile,
	}
	if err != nil {
		out.Message = engine.Message(err)
	}
	return out
}
