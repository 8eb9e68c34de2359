// Package patient defines the patients that walk into the emergency room.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package patient

import "time"

// Urgency represents how critical a patient's condition is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high" // Weighs more on pressure, worth more points
)

// Archetype is one entry of the fixed patient catalog.
type Archetype struct {
	Name      string
	Condition string
	Urgency   Urgency
	ImageURL  string
}

// Patient represents a single person waiting (or being treated) in the ER.
type Patient struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Condition    string    `json:"condition"`
	Urgency      Urgency   `json:"urgency"`
	ImageURL     string    `json:"image_url"`
	ArrivalTime  time.Time `json:"arrival_time"`
	BeingTreated bool      `json:"being_treated"`
}

// New creates a freshly arrived patient from a catalog archetype.
func New(id int, a Archetype, arrival time.Time) *Patient {
	return &Patient{
		ID:          id,
		Name:        a.Name,
		Condition:   a.Condition,
		Urgency:     a.Urgency,
		ImageURL:    a.ImageURL,
		ArrivalTime: arrival,
	}
}

// IsHighUrgency reports whether the patient is an emergency.
func (p *Patient) IsHighUrgency() bool {
	return p.Urgency == UrgencyHigh
}

// ArrivalPressure is how much the hospital pressure grows when this patient arrives.
func (p *Patient) ArrivalPressure() int {
	if p.IsHighUrgency() {
		return 15
	}
	return 10
}

// CurePressure is how much the hospital pressure drops when this patient is cured.
func (p *Patient) CurePressure() int {
	if p.IsHighUrgency() {
		return 20
	}
	return 15
}
