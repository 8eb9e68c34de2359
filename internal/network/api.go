package network

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/metrics"
)

// Server is the HTTP presentation layer of the game.
type Server struct {
	echo    *echo.Echo
	game    Game
	hub     *Hub
	history *HistoryHandler
	metrics *metrics.Collector
	logger  *logger.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The browser client may be served from another origin in dev
	},
}

// NewServer wires the routes of the game API.
func NewServer(game Game, hub *Hub, eventLog *events.EventLog, collector *metrics.Collector, log *logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		game:    game,
		hub:     hub,
		history: NewHistoryHandler(eventLog, log),
		metrics: collector,
		logger:  log,
	}

	// Global middleware
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Game routes keep the paths of the browser client. GET and POST are both accepted.
	both := []string{http.MethodGet, http.MethodPost}
	e.Match(both, "/start_game", s.handleStart)
	e.GET("/game_state", s.handleState)
	e.Match(both, "/select_patient/:id", s.handleSelectPatient)
	e.Match(both, "/select_doctor/:id", s.handleSelectDoctor)
	e.Match(both, "/assign_doctor/:doctor_id/:patient_id", s.handleAssign)
	e.Match(both, "/end_game", s.handleEnd(true))
	e.Match(both, "/abandon_game", s.handleEnd(false))

	e.GET("/ws", s.handleWebSocket)
	s.history.RegisterRoutes(e.Group("/api"))

	e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	e.GET("/metrics/prometheus", echo.WrapHandler(collector.PrometheusHandler()))

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP API & WS Server listening on " + addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) run(c echo.Context, a Action) error {
	result, err := dispatch(c.Request().Context(), s.game, a)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.hub != nil && a.Type != "POLL" {
		s.hub.BroadcastState()
	}
	return c.JSON(http.StatusOK, result)
}

func pathID(c echo.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	return id, err == nil
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, Response{Status: StatusError, Message: "ID non valido"})
}

func (s *Server) handleStart(c echo.Context) error {
	return s.run(c, Action{Type: "START"})
}

func (s *Server) handleState(c echo.Context) error {
	return s.run(c, Action{Type: "POLL"})
}

func (s *Server) handleSelectPatient(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	return s.run(c, Action{Type: "SELECT_PATIENT", PatientID: id})
}

func (s *Server) handleSelectDoctor(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	return s.run(c, Action{Type: "SELECT_DOCTOR", DoctorID: id})
}

func (s *Server) handleAssign(c echo.Context) error {
	doctorID, ok := pathID(c, "doctor_id")
	if !ok {
		return badID(c)
	}
	patientID, ok := pathID(c, "patient_id")
	if !ok {
		return badID(c)
	}
	return s.run(c, Action{Type: "ASSIGN", DoctorID: doctorID, PatientID: patientID})
}

func (s *Server) handleEnd(graceful bool) echo.HandlerFunc {
	action := "END"
	if !graceful {
		action = "ABANDON"
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return s.run(c, Action{Type: action})
	}
}

// handleWebSocket upgrades the connection and attaches a client to the hub.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket connection", err)
		s.metrics.RecordWSError()
		return nil
	}

	client := NewClient(s.hub, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
	return nil
}
