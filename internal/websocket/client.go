package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"flagcli/internal/config"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

// Connection is the subset of *websocket.Conn a client uses
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	remoteAddr  string
	connectedAt time.Time
	pingPeriod  time.Duration
	pongWait    time.Duration

	logger *slog.Logger
}

// NewClient creates a client for conn. A pong wait not longer than the ping
// period is raised to twice the period.
func NewClient(hub *Hub, conn Connection, remoteAddr string, cfg config.WebSocketConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = hub.baseLogger
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = config.WebSocketPingPeriod
	}
	if cfg.PongWait <= cfg.PingPeriod {
		cfg.PongWait = 2 * cfg.PingPeriod
	}
	id := uuid.New().String()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		pingPeriod:  cfg.PingPeriod,
		pongWait:    cfg.PongWait,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id)),
	}
}

// ID returns the client's identifier
func (c *Client) ID() string { return c.id }

// ReadPump reads from the connection until it fails. The feed is one way;
// incoming messages only keep the connection alive.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected WebSocket close", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump writes queued messages and pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Error writing message to WebSocket", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping message", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Handler upgrades requests to websocket connections subscribed to hub.
// Cross-origin browsers are refused; requests without an Origin header are
// allowed.
func Handler(hub *Hub, cfg config.WebSocketConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     sameOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			hub.logger.WarnContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			http.Error(w, http.StatusText(status), status)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.RemoteAddr, cfg, nil)
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
