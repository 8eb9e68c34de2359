package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/events"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/logger"
	"github.com/MRamiBalles/FantasyEROperations/server/internal/platform/metrics"
)

// Frame types pushed to websocket clients.
const (
	FrameState  = "state"
	FrameEvent  = "event"
	FrameResult = "result"
)

// Frame is the envelope of every websocket message sent by the server.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// outbound is a message for a single client.
type outbound struct {
	client  *Client
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	direct     chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	game    Game
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes a new WebSocket Hub driving game.
func NewHub(game Game, log *logger.Logger, collector *metrics.Collector) *Hub {
	if collector == nil {
		collector = metrics.Get()
	}
	return &Hub{
		broadcast:  make(chan []byte, 64),
		direct:     make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		game:       game,
		logger:     log,
		metrics:    collector,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case out := <-h.direct:
			h.mu.Lock()
			if _, ok := h.clients[out.client]; ok {
				select {
				case out.client.send <- out.payload:
					h.metrics.RecordWSMessage(false)
				default:
					h.logger.Warn("Client send buffer full, dropping result")
				}
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) publish(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to serialize "+frame.Type+" frame for WebSocket broadcast", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Broadcast queue full, dropping " + frame.Type + " frame")
	}
}

// BroadcastEvent sends a journal event to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	h.publish(Frame{Type: FrameEvent, Data: event})
}

// BroadcastState sends the current game view to all connected clients.
func (h *Hub) BroadcastState() {
	h.publish(Frame{Type: FrameState, Data: h.game.Poll()})
}

// StartEventPoller spawns a goroutine that pushes new journal events to the Hub,
// followed by a fresh state frame. A state frame also goes out every
// statePeriod so the session clock keeps moving on screen.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, statePeriod time.Duration) {
	go func() {
		pollInterval := time.NewTicker(200 * time.Millisecond)
		defer pollInterval.Stop()

		lastProcessedEvent := 0
		lastState := time.Now()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				newEvents, next := eventLog.Since(lastProcessedEvent)
				lastProcessedEvent = next
				for _, event := range newEvents {
					h.BroadcastEvent(event)
				}
				if len(newEvents) > 0 || time.Since(lastState) >= statePeriod {
					if h.ClientCount() > 0 {
						h.BroadcastState()
					}
					lastState = time.Now()
				}
			}
		}
	}()
}
