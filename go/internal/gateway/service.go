package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Config holds configuration for the gateway.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" envPrefix:"WS_"`
	QueueSize  int              `yaml:"queue_size" env:"HUB_QUEUE_SIZE"`
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		Connection: DefaultConnectionConfig(),
		QueueSize:  1024,
	}
}

// Service owns the hubs and the WebSocket endpoint that feeds them.
type Service struct {
	config  Config
	hubs    []*Hub
	handler *WebSocketHandler
}

// NewService creates the gateway. Hubs are added with AddHub.
func NewService(ctx context.Context, cfg Config, identity IdentityResolver) *Service {
	return &Service{
		config:  cfg,
		handler: NewWebSocketHandler(ctx, cfg.Connection, identity),
	}
}

// AddHub creates a hub served at path.
func (s *Service) AddHub(name, path string) *Hub {
	hub := NewHub(name, s.config.QueueSize)
	s.hubs = append(s.hubs, hub)
	s.handler.Mount(path, hub)
	return hub
}

// Start runs every hub until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Int("hubs", len(s.hubs)).Msg("starting gateway")
	for _, hub := range s.hubs {
		go hub.Run(ctx)
	}
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}
