package main

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/doctor"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/domain/patient"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/network"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var urgencyRank = map[patient.Urgency]int{
	patient.UrgencyHigh:   0,
	patient.UrgencyMedium: 1,
	patient.UrgencyLow:    2,
}

// pickMove chooses the next ASSIGN: the most urgent waiting patient, with its
// perfect doctor when free, otherwise the least tired free doctor.
func pickMove(v engine.GameView) (network.Action, bool) {
	if !v.IsRunning {
		return network.Action{}, false
	}
	waiting := lo.Filter(v.Patients, func(p patient.Patient, _ int) bool { return !p.BeingTreated })
	free := lo.Filter(v.Doctors, func(d engine.DoctorView, _ int) bool { return d.Available })
	if len(waiting) == 0 || len(free) == 0 {
		return network.Action{}, false
	}

	target := lo.MinBy(waiting, func(a, b patient.Patient) bool {
		if urgencyRank[a.Urgency] != urgencyRank[b.Urgency] {
			return urgencyRank[a.Urgency] < urgencyRank[b.Urgency]
		}
		return a.ID < b.ID
	})
	medic, ok := lo.Find(free, func(d engine.DoctorView) bool {
		return doctor.IsPerfectCouple(target.Name, d.Name)
	})
	if !ok {
		medic = lo.MinBy(free, func(a, b engine.DoctorView) bool { return a.Fatigue < b.Fatigue })
	}
	return network.Action{Type: "ASSIGN", PatientID: target.ID, DoctorID: medic.ID}, true
}

type latencySummary struct {
	Count         int
	Min, Avg, Max time.Duration
}

func summarize(latencies []time.Duration) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}
	return latencySummary{
		Count: len(latencies),
		Min:   lo.Min(latencies),
		Max:   lo.Max(latencies),
		Avg:   lo.Sum(latencies) / time.Duration(len(latencies)),
	}
}
