// Package network - history.go
// Journal replay endpoint: JSON export of what happened in the ER.
package network

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
)

// HistoryHandler provides the journal replay API.
type HistoryHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewHistoryHandler creates a new replay handler.
func NewHistoryHandler(el *events.EventLog, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		eventLog: el,
		logger:   log,
	}
}

// ReplayEvent is a journal event formatted for viewing.
type ReplayEvent struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"session_id"`
	Timestamp string                 `json:"timestamp"`
	GameTime  int64                  `json:"game_time"`
	Type      string                 `json:"type"`
	Actor     string                 `json:"actor"`
	Target    string                 `json:"target,omitempty"`
	Summary   string                 `json:"summary"`
	Impact    string                 `json:"impact"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ReplayResponse is the API response for a replay.
type ReplayResponse struct {
	SessionID   string        `json:"session_id,omitempty"`
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns the journal, optionally filtered.
// GET /api/history?session_id=XXX&type=PATIENT_CURED&since=N
func (hh *HistoryHandler) HandleReplay(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	eventType := c.QueryParam("type")
	since := 0
	if raw := c.QueryParam("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid since"})
		}
		since = n
	}

	journal, _ := hh.eventLog.Since(since)

	replay := make([]ReplayEvent, 0, len(journal))
	filterDesc := ""
	for _, e := range journal {
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		if eventType != "" {
			if string(e.Type) != eventType {
				continue
			}
			filterDesc = "type " + eventType
		}
		replay = append(replay, hh.convertToReplayEvent(e))
	}

	hh.logger.Debug("History replay: " + strconv.Itoa(len(replay)) + " events")

	return c.JSON(http.StatusOK, ReplayResponse{
		SessionID:   sessionID,
		TotalEvents: len(replay),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replay,
	})
}

// HandleEventDetail returns one event with its payload.
// GET /api/history/:id
func (hh *HistoryHandler) HandleEventDetail(c echo.Context) error {
	eventID := c.Param("id")
	for _, e := range hh.eventLog.Replay() {
		if e.ID == eventID {
			detail := hh.convertToReplayEvent(e)
			detail.Details = e.Fields()
			return c.JSON(http.StatusOK, detail)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Event not found"})
}

// HandleStats returns event counts per type.
// GET /api/history/stats
func (hh *HistoryHandler) HandleStats(c echo.Context) error {
	journal := hh.eventLog.Replay()

	stats := map[string]int{"total_events": len(journal)}
	for _, e := range journal {
		stats[string(e.Type)]++
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// RegisterRoutes sets up the history API routes.
func (hh *HistoryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/history", hh.HandleReplay)
	g.GET("/history/stats", hh.HandleStats)
	g.GET("/history/:id", hh.HandleEventDetail)
}

// convertToReplayEvent transforms a journal event to its public format.
func (hh *HistoryHandler) convertToReplayEvent(e events.GameEvent) ReplayEvent {
	summary, impact := events.Describe(e)
	return ReplayEvent{
		ID:        e.ID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp.Format("15:04:05"),
		GameTime:  e.GameTime,
		Type:      string(e.Type),
		Actor:     e.ActorID,
		Target:    e.TargetID,
		Summary:   summary,
		Impact:    impact,
	}
}
