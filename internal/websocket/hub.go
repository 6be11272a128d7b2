package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"flagcli/internal/infrastructure"
	"flagcli/internal/pipeline"
)

// TypeConnection is sent to each client once it is registered
const TypeConnection = "connection"

// broadcastBuffer bounds how many events may wait for the hub loop before
// Publish starts dropping them
const broadcastBuffer = 64

// Hub maintains the set of active clients and broadcasts run events to them.
// It implements pipeline.EventSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger     *slog.Logger
	baseLogger *slog.Logger
	metrics    *hubMetrics
}

// NewHub creates a hub. meter may be nil, in which case no metrics are
// recorded.
func NewHub(logger *slog.Logger, meter metric.Meter) *Hub {
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	m, err := newHubMetrics(meter)
	if err != nil {
		logger.Warn("WebSocket metrics disabled", slog.String("error", err.Error()))
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		baseLogger: logger,
		metrics:    m,
	}
}

// Start runs the hub loop in its own goroutine. Clients can only register
// once the hub is started. Calling Start twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client, "closed")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	ctx := context.Background()
	h.metrics.connected(ctx)
	h.logger.Info("Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	greeting, err := json.Marshal(map[string]interface{}{
		"type": TypeConnection,
		"data": map[string]interface{}{
			"status":    "connected",
			"client_id": client.id,
		},
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- greeting:
	default:
		h.logger.Warn("Failed to send connection message, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.disconnected(context.Background(), time.Since(client.connectedAt), reason)
	h.logger.Info("Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
			h.metrics.sent(context.Background(), len(message))
		default:
			h.logger.Warn("Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
			h.remove(client, "slow_consumer")
		}
	}
	h.logger.Debug("Broadcast event",
		slog.Int("client_count", len(clients)),
		slog.Int("message_size", len(message)))
}

// Publish broadcasts a run event to every connected client. It never blocks:
// when the hub is stopped or its queue is full the event is dropped.
func (h *Hub) Publish(ctx context.Context, event pipeline.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.Type)))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- data:
	default:
		h.metrics.dropped(ctx)
		h.logger.WarnContext(ctx, "Broadcast queue full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. It returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

var _ pipeline.EventSink = (*Hub)(nil)
