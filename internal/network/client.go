package network

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Minimum spacing between two actions of the same client.
	actionCooldown = 50 * time.Millisecond
	// Time allowed for an action that saves a session.
	actionTimeout = 10 * time.Second
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
	}
}

// ReadPump pumps player actions from the websocket connection to the game.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read failed", err)
				c.hub.metrics.RecordWSError()
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action Action
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse Action from WebSocket. err: " + err.Error())
			c.reply(Response{Status: StatusError, Message: "Azione non valida"})
			continue
		}

		c.handleAction(action)
	}
}

func (c *Client) handleAction(action Action) {
	// Rate Limiting Check
	if time.Since(c.lastActionTime) < actionCooldown {
		c.hub.logger.Warn("Rate limit exceeded for client action " + action.Type)
		c.reply(Response{Status: StatusError, Message: "Troppe azioni, rallenta"})
		return
	}
	c.lastActionTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	result, err := dispatch(ctx, c.hub.game, action)
	if errors.Is(err, ErrUnknownAction) {
		c.hub.logger.Warn("Unknown Action type: " + action.Type)
		c.reply(Response{Status: StatusError, Message: "Azione sconosciuta: " + action.Type})
		return
	}
	c.hub.logger.Event("PLAYER_ACTION", "WS_CLIENT", action.Type)
	c.reply(result)
	c.hub.BroadcastState()
}

// reply queues a result frame for this client only.
func (c *Client) reply(data interface{}) {
	payload, err := json.Marshal(Frame{Type: FrameResult, Data: data})
	if err != nil {
		c.hub.logger.Error("Failed to serialize result frame", err)
		return
	}
	// The hub owns c.send; it drops the reply if the client is gone.
	select {
	case c.hub.direct <- outbound{client: c, payload: payload}:
	case <-c.hub.done:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Each frame goes out as its own websocket message.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
