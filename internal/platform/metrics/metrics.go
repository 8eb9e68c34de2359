// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers gameplay and transport counters.
type Collector struct {
	// Session metrics
	SessionsStarted int64
	SessionsEnded   int64
	GameOvers       int64

	// Gameplay metrics
	PatientsArrived int64
	PatientsCured   int64
	PerfectCouples  int64
	RandomEvents    int64
	AssignFailures  int64

	// Save metrics
	SavesWritten int64
	SaveLatSum   int64 // nanoseconds
	SaveLatMax   int64
	SaveErrors   int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime    time.Time
	LastGameOver time.Time
	mu           sync.RWMutex
}

// Global collector instance
var collector = New()

// New creates an empty collector. Tests use their own instance.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

func (c *Collector) RecordSessionStarted() {
	atomic.AddInt64(&c.SessionsStarted, 1)
}

func (c *Collector) RecordSessionEnded() {
	atomic.AddInt64(&c.SessionsEnded, 1)
}

// RecordGameOver records a session lost to pressure, collapse or overload.
func (c *Collector) RecordGameOver() {
	atomic.AddInt64(&c.GameOvers, 1)

	c.mu.Lock()
	c.LastGameOver = time.Now()
	c.mu.Unlock()
}

func (c *Collector) RecordArrival() {
	atomic.AddInt64(&c.PatientsArrived, 1)
}

func (c *Collector) RecordRandomEvent() {
	atomic.AddInt64(&c.RandomEvents, 1)
}

// RecordCure records a successful assignment.
func (c *Collector) RecordCure(perfectCouple bool) {
	atomic.AddInt64(&c.PatientsCured, 1)
	if perfectCouple {
		atomic.AddInt64(&c.PerfectCouples, 1)
	}
}

func (c *Collector) RecordAssignFailure() {
	atomic.AddInt64(&c.AssignFailures, 1)
}

// RecordSave records a session save attempt.
func (c *Collector) RecordSave(latency time.Duration, err error) {
	atomic.AddInt64(&c.SavesWritten, 1)
	atomic.AddInt64(&c.SaveLatSum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.SaveLatMax) {
		atomic.StoreInt64(&c.SaveLatMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.SaveErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	saves := atomic.LoadInt64(&c.SavesWritten)
	var saveAvg float64
	if saves > 0 {
		saveAvg = float64(atomic.LoadInt64(&c.SaveLatSum)) / float64(saves) / 1e6 // ms
	}

	lastGameOver := ""
	if !c.LastGameOver.IsZero() {
		lastGameOver = c.LastGameOver.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"sessions": map[string]interface{}{
			"started":        atomic.LoadInt64(&c.SessionsStarted),
			"ended":          atomic.LoadInt64(&c.SessionsEnded),
			"game_overs":     atomic.LoadInt64(&c.GameOvers),
			"last_game_over": lastGameOver,
		},

		"gameplay": map[string]interface{}{
			"arrivals":        atomic.LoadInt64(&c.PatientsArrived),
			"cures":           atomic.LoadInt64(&c.PatientsCured),
			"perfect_couples": atomic.LoadInt64(&c.PerfectCouples),
			"random_events":   atomic.LoadInt64(&c.RandomEvents),
			"assign_failures": atomic.LoadInt64(&c.AssignFailures),
		},

		"saves": map[string]interface{}{
			"written":          saves,
			"avg_write_lat_ms": saveAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.SaveLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.SaveErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		_ = json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("er_sessions_started", "Total sessions started", atomic.LoadInt64(&c.SessionsStarted))
		counter("er_game_overs", "Total sessions lost", atomic.LoadInt64(&c.GameOvers))
		counter("er_patients_arrived", "Total patient arrivals", atomic.LoadInt64(&c.PatientsArrived))
		counter("er_patients_cured", "Total patients cured", atomic.LoadInt64(&c.PatientsCured))
		counter("er_perfect_couples", "Cures with the perfect couple bonus", atomic.LoadInt64(&c.PerfectCouples))
		counter("er_save_errors", "Failed session saves", atomic.LoadInt64(&c.SaveErrors))

		fmt.Fprintf(w, "# HELP er_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE er_ws_connections gauge\n")
		fmt.Fprintf(w, "er_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP er_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE er_ws_messages_total counter\n")
		fmt.Fprintf(w, "er_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "er_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
