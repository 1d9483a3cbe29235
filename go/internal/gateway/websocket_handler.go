package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/game"
)

// WebSocketHandler upgrades game connections and attaches them to hubs.
type WebSocketHandler struct {
	ctx      context.Context
	config   ConnectionConfig
	identity IdentityResolver
	upgrader websocket.Upgrader
	routes   map[string]*Hub
}

// NewWebSocketHandler creates a handler. Connections are served until ctx is
// cancelled.
func NewWebSocketHandler(ctx context.Context, cfg ConnectionConfig, identity IdentityResolver) *WebSocketHandler {
	return &WebSocketHandler{
		ctx:      ctx,
		config:   cfg,
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
		routes: make(map[string]*Hub),
	}
}

// Mount serves hub at path.
func (h *WebSocketHandler) Mount(path string, hub *Hub) {
	h.routes[path] = hub
}

// HandleConnection resolves the caller, upgrades the request and starts the
// connection's pumps.
func (h *WebSocketHandler) HandleConnection(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := h.identity.Resolve(r)
		if err != nil {
			log.Warn().Err(err).Str("hub", hub.Name()).Msg("rejected connection")
			status := http.StatusInternalServerError
			if errors.Is(err, ErrUnauthorized) {
				status = http.StatusUnauthorized
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			log.Error().Err(err).Str("hub", hub.Name()).Msg("failed to upgrade WebSocket connection")
			return
		}

		origin := game.Origin{
			ConnectionID: uuid.NewString(),
			Participant:  participant,
		}
		conn := newConnection(ws, origin, h.config)
		hub.Connect(origin, conn)

		go conn.writePump()
		go conn.readPump(h.ctx, hub)

		log.Info().
			Str("hub", hub.Name()).
			Str("connection_id", origin.ConnectionID).
			Str("participant_id", participant.ID).
			Msg("WebSocket connection established")
	}
}

// HandleConnectionStats returns connection counts per hub.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, _ *http.Request) {
	stats := make([]HubStats, 0, len(h.routes))
	total := 0
	for _, hub := range h.routes {
		s := hub.Stats()
		total += s.Connections
		stats = append(stats, s)
	}
	slices.SortFunc(stats, func(a, b HubStats) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"hubs":              stats,
	}); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	for path, hub := range h.routes {
		mux.HandleFunc(path, h.HandleConnection(hub))
	}
	mux.HandleFunc("/stats", h.HandleConnectionStats)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}
