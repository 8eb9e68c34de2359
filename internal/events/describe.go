package events

import (
	"encoding/json"
	"fmt"
)

// Impact classifies how an event weighs on the hospital.
const (
	ImpactPositive = "POSITIVE"
	ImpactNegative = "NEGATIVE"
	ImpactNeutral  = "NEUTRAL"
)

// Fields returns the payload as a JSON object. Non-object payloads come back
// under the "value" key.
func (e GameEvent) Fields() map[string]interface{} {
	if m, ok := e.Payload.(map[string]interface{}); ok {
		return m
	}
	out := map[string]interface{}{}
	if e.Payload == nil {
		return out
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var v interface{}
		if json.Unmarshal(raw, &v) == nil {
			out["value"] = v
		}
	}
	return out
}

func field(f map[string]interface{}, key string) string {
	if v, ok := f[key]; ok {
		return fmt.Sprint(v)
	}
	return "?"
}

// Describe returns a human-readable summary and the impact of an event.
func Describe(e GameEvent) (summary, impact string) {
	f := e.Fields()
	switch e.Type {
	case EventTypeSessionStarted:
		return "Turno iniziato.", ImpactNeutral
	case EventTypePatientArrived:
		return fmt.Sprintf("Arrivato %s (%s).", field(f, "name"), field(f, "urgency")), ImpactNegative
	case EventTypePatientCured:
		return fmt.Sprintf("%s curato da %s: +%s punti.",
			field(f, "patient_name"), field(f, "doctor_name"), field(f, "points")), ImpactPositive
	case EventTypeDoctorRecovered:
		return fmt.Sprintf("%s è di nuovo disponibile.", field(f, "name")), ImpactPositive
	case EventTypeRandomEvent:
		return field(f, "text"), ImpactNeutral
	case EventTypeGameOver:
		return "Game over: " + field(f, "reason") + ".", ImpactNegative
	case EventTypeSessionEnded:
		return fmt.Sprintf("Partita terminata con %s punti.", field(f, "final_score")), ImpactNeutral
	default:
		return "Qualcosa è successo in corsia.", ImpactNeutral
	}
}
