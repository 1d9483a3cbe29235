package gateway

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/game"
)

// outbound is one queued delivery. An empty connID means broadcast.
type outbound struct {
	connID string
	event  game.Event
}

// Hub connects the clients of one game to its router. Sessions emit through
// the hub, and a single loop serializes and fans events out so every
// connection sees them in the order they were produced.
type Hub struct {
	name     string
	registry *Registry
	router   game.Router
	queue    chan outbound
	done     chan struct{}
	logger   zerolog.Logger
}

// NewHub creates a hub. Attach a router before serving connections.
func NewHub(name string, queueSize int) *Hub {
	return &Hub{
		name:     name,
		registry: NewRegistry(),
		queue:    make(chan outbound, queueSize),
		done:     make(chan struct{}),
		logger:   log.With().Str("hub", name).Logger(),
	}
}

// Attach sets the router that owns this hub's sessions.
func (h *Hub) Attach(r game.Router) {
	h.router = r
}

func (h *Hub) Name() string {
	return h.name
}

// Run delivers queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("hub shutting down")
			return
		case o := <-h.queue:
			h.deliver(o)
		}
	}
}

// Register adds a connection's sink, replacing any previous one.
func (h *Hub) Register(connID string, sink Sink) {
	h.registry.Register(connID, sink)
}

// Unregister removes a connection. Unknown ids are ignored.
func (h *Hub) Unregister(connID string) {
	h.registry.Unregister(connID)
}

// Connect registers the connection and tells the router about it.
func (h *Hub) Connect(origin game.Origin, sink Sink) {
	h.Register(origin.ConnectionID, sink)
	h.router.Connected(origin)

	h.logger.Info().
		Str("connection_id", origin.ConnectionID).
		Str("participant_id", origin.Participant.ID).
		Int("total_connections", h.registry.Len()).
		Msg("connection registered")
}

// Disconnect unregisters the connection and tells the router.
func (h *Hub) Disconnect(origin game.Origin) {
	h.Unregister(origin.ConnectionID)
	h.router.Disconnected(origin)

	h.logger.Info().
		Str("connection_id", origin.ConnectionID).
		Str("participant_id", origin.Participant.ID).
		Msg("connection unregistered")
}

// Handle decodes a raw client message and dispatches it.
func (h *Hub) Handle(ctx context.Context, origin game.Origin, raw []byte) error {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return err
	}
	action, err := h.router.Decode(origin, env.Type, env.Payload)
	if err != nil {
		return err
	}
	return h.Dispatch(ctx, action)
}

// Dispatch routes an action to the session that owns it.
func (h *Hub) Dispatch(ctx context.Context, action game.Action) error {
	return h.router.Route(ctx, action)
}

// Reject reports an error to the connection that caused it. Internal errors
// are logged with their detail and sent as a generic failure.
func (h *Hub) Reject(origin game.Origin, err error) {
	var gerr *game.Error
	if !errors.As(err, &gerr) || gerr.Kind == game.KindInternal {
		h.logger.Error().Err(err).Str("connection_id", origin.ConnectionID).Msg("failed to handle client message")
	}
	h.Send(origin.ConnectionID, game.ErrorEvent(err))
}

// Broadcast queues ev for every registered connection.
func (h *Hub) Broadcast(ev game.Event) {
	h.enqueue(outbound{event: ev})
}

// Send queues ev for a single connection.
func (h *Hub) Send(connID string, ev game.Event) {
	h.enqueue(outbound{connID: connID, event: ev})
}

func (h *Hub) enqueue(o outbound) {
	select {
	case h.queue <- o:
	case <-h.done:
	}
}

func (h *Hub) deliver(o outbound) {
	data, err := Encode(o.event)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(o.event.Type)).Msg("failed to marshal event")
		if o.connID == "" {
			return
		}
		if data, err = Encode(game.ErrorEvent(game.ErrInternal)); err != nil {
			return
		}
	}

	if o.connID != "" {
		sink, ok := h.registry.Get(o.connID)
		if !ok {
			h.logger.Debug().Str("connection_id", o.connID).Msg("dropping event for unknown connection")
			return
		}
		if err := sink.Send(data); err != nil {
			h.drop(o.connID, sink, err)
		}
		return
	}

	targets := h.registry.snapshot()
	for _, t := range targets {
		if err := t.sink.Send(data); err != nil {
			h.drop(t.id, t.sink, err)
		}
	}

	h.logger.Debug().
		Str("event_type", string(o.event.Type)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (h *Hub) drop(id string, sink Sink, cause error) {
	if !h.registry.unregisterSink(id, sink) {
		return
	}
	h.logger.Warn().Err(cause).Str("connection_id", id).Msg("send failed, closing connection")
	if err := sink.Close(); err != nil {
		h.logger.Debug().Err(err).Str("connection_id", id).Msg("failed to close connection")
	}
}

// Stats reports connection counts.
func (h *Hub) Stats() HubStats {
	return HubStats{Name: h.name, Connections: h.registry.Len()}
}

type HubStats struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}
