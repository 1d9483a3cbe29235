// Package chat relays messages between everyone connected to the chat hub.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

// MaxMessageLength bounds a chat message in characters.
const MaxMessageLength = 500

// Say is a chat message from one connection.
type Say struct {
	Origin game.Origin
	Text   string
}

func (a Say) From() game.Origin { return a.Origin }

type sayPayload struct {
	Text string `json:"text" validate:"required,max=500"`
}

// Message is a relayed chat line.
type Message struct {
	Sender models.Participant `json:"sender"`
	Text   string             `json:"text"`
	SentAt time.Time          `json:"sent_at"`
}

// Room broadcasts every accepted message to the whole hub. It holds no state;
// ordering comes from the hub's outbound queue.
type Room struct {
	emit   game.Emitter
	clock  clockwork.Clock
	logger zerolog.Logger
}

func NewRoom(emit game.Emitter, clock clockwork.Clock) *Room {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Room{
		emit:   emit,
		clock:  clock,
		logger: log.With().Str("hub", "chat").Logger(),
	}
}

func (r *Room) Decode(origin game.Origin, msgType string, payload []byte) (game.Action, error) {
	if msgType != "message" {
		return nil, game.ErrUnknownAction
	}
	if err := game.RequireParticipant(origin); err != nil {
		return nil, err
	}
	var p sayPayload
	if err := game.DecodePayload(payload, &p); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, game.Invalid("message text is empty")
	}
	return Say{Origin: origin, Text: text}, nil
}

func (r *Room) Route(_ context.Context, action game.Action) error {
	a, ok := action.(Say)
	if !ok {
		return game.ErrUnknownAction
	}
	r.emit.Broadcast(game.Event{Type: game.EventChat, Payload: Message{
		Sender: a.Origin.Participant,
		Text:   a.Text,
		SentAt: r.clock.Now().UTC(),
	}})
	r.logger.Debug().Str("participant_id", a.Origin.Participant.ID).Int("length", len(a.Text)).Msg("chat message relayed")
	return nil
}

func (r *Room) Connected(game.Origin)    {}
func (r *Room) Disconnected(game.Origin) {}
