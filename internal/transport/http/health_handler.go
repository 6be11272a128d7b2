package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"flagcli/internal/config"
	"flagcli/internal/infrastructure"
)

// ClientCounter reports connected status-feed clients
type ClientCounter interface {
	ClientCount() int
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	WebSocketClients int    `json:"websocket_clients"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	clients ClientCounter
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. clients may be nil.
func NewHealthHandler(clients ClientCounter, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	return &HealthHandler{
		clients: clients,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: config.AppVersion,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.clients != nil {
		resp.WebSocketClients = h.clients.ClientCount()
	}
	render.JSON(w, r, resp)
}
