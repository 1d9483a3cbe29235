package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/game/gametest"
)

func TestRoomRelaysMessages(t *testing.T) {
	emit := gametest.NewEmitter()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	room := NewRoom(emit, clock)
	alice := gametest.Player("1", "alice")

	a, err := room.Decode(alice, "message", []byte(`{"text":"  good luck  "}`))
	require.NoError(t, err)
	require.NoError(t, room.Route(context.Background(), a))

	sent := emit.Expect(t, game.EventChat)
	assert.Empty(t, sent.ConnID)
	msg := sent.Event.Payload.(Message)
	assert.Equal(t, "1", msg.Sender.ID)
	assert.Equal(t, "good luck", msg.Text)
	assert.WithinDuration(t, clock.Now(), msg.SentAt, 0)
}

func TestRoomDecode(t *testing.T) {
	room := NewRoom(gametest.NewEmitter(), nil)
	alice := gametest.Player("1", "alice")

	tests := []struct {
		name    string
		origin  game.Origin
		msgType string
		payload string
		want    error
		invalid bool
	}{
		{name: "unknown type", origin: alice, msgType: "bet", payload: `{}`, want: game.ErrUnknownAction},
		{name: "anonymous", origin: game.Origin{ConnectionID: "c"}, msgType: "message", payload: `{"text":"hi"}`, want: game.ErrUnauthenticated},
		{name: "missing text", origin: alice, msgType: "message", payload: `{}`, invalid: true},
		{name: "blank text", origin: alice, msgType: "message", payload: `{"text":"   "}`, invalid: true},
		{name: "too long", origin: alice, msgType: "message", payload: `{"text":"` + strings.Repeat("x", MaxMessageLength+1) + `"}`, invalid: true},
		{name: "malformed", origin: alice, msgType: "message", payload: `{"text":`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := room.Decode(tt.origin, tt.msgType, []byte(tt.payload))
			require.Error(t, err)
			if tt.invalid {
				assert.Equal(t, game.KindValidation, game.AsError(err).Kind)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRoomRejectsForeignActions(t *testing.T) {
	room := NewRoom(gametest.NewEmitter(), nil)
	err := room.Route(context.Background(), fakeAction{})
	assert.ErrorIs(t, err, game.ErrUnknownAction)
}

type fakeAction struct{}

func (fakeAction) From() game.Origin { return game.Origin{} }
