package coinflip

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/game/gametest"
	"github.com/mcdev12/casino/go/internal/models"
)

func newTestLobby(t *testing.T, roll uint64) (*Lobby, *gametest.Emitter, *gametest.Recorder, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	emit := gametest.NewEmitter()
	rec := &gametest.Recorder{}
	l := NewLobby(ctx, DefaultConfig(), emit,
		WithClock(clockwork.NewFakeClock()),
		WithOracle(&gametest.Oracle{Roll: roll}),
		WithRecorder(rec),
	)
	return l, emit, rec, ctx
}

func result(t *testing.T, emit *gametest.Emitter, connID string) resultPayload {
	t.Helper()
	return emit.ExpectTo(t, connID, game.EventGameResult).Event.Payload.(resultPayload)
}

func TestCoinflipRound(t *testing.T) {
	tests := []struct {
		name   string
		roll   uint64
		winner string
		loser  string
	}{
		{name: "creator wins", roll: 0, winner: "1", loser: "2"},
		{name: "joiner wins", roll: 1, winner: "2", loser: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, emit, rec, ctx := newTestLobby(t, tt.roll)
			alice := gametest.Player("1", "alice")
			bob := gametest.Player("2", "bob")
			carol := gametest.Player("3", "carol")
			viewer := game.Origin{ConnectionID: "viewer"}

			require.NoError(t, l.Route(ctx, CreateGame{Origin: alice, Amount: 500}))
			created := emit.Expect(t, game.EventNewGame).Event.Payload.(Listing)
			assert.Equal(t, models.Amount(500), created.Amount)
			assert.Equal(t, "1", created.Player.ID)
			assert.Equal(t, []Listing{created}, l.Open())

			require.NoError(t, l.Route(ctx, Spectate{Origin: viewer, GameID: created.GameID}))
			require.NoError(t, l.Route(ctx, JoinGame{Origin: bob, GameID: created.GameID}))

			players := map[string]game.Origin{"1": alice, "2": bob}
			won := result(t, emit, players[tt.winner].ConnectionID)
			assert.Equal(t, OutcomeWon, won.Outcome)
			assert.Equal(t, "You won $5.00!", won.Message)

			lost := result(t, emit, players[tt.loser].ConnectionID)
			assert.Equal(t, OutcomeLost, lost.Outcome)
			assert.Equal(t, "You lost. Better luck next time!", lost.Message)

			public := result(t, emit, viewer.ConnectionID)
			assert.Equal(t, OutcomePublic, public.Outcome)
			assert.Equal(t, tt.winner, public.Winner.ID)
			assert.Equal(t, float64(tt.roll), public.Fairness.Outcome)
			assert.Equal(t, "private-1", public.Fairness.PrivateSeed)

			emit.Expect(t, game.EventGameClosed)
			assert.Empty(t, l.Open())

			err := l.Route(ctx, JoinGame{Origin: carol, GameID: created.GameID})
			assert.ErrorIs(t, err, game.ErrGameFull)

			assert.Len(t, rec.Deposits(), 2)
		})
	}
}

func TestConcurrentJoinsSeatExactlyOne(t *testing.T) {
	l, emit, rec, ctx := newTestLobby(t, 1)
	alice := gametest.Player("1", "alice")

	require.NoError(t, l.Route(ctx, CreateGame{Origin: alice, Amount: 100}))
	created := emit.Expect(t, game.EventNewGame).Event.Payload.(Listing)

	const joiners = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pending = map[string]bool{}
	)
	for i := 0; i < joiners; i++ {
		p := gametest.Player(fmt.Sprintf("j%d", i), fmt.Sprintf("joiner%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Route(ctx, JoinGame{Origin: p, GameID: created.GameID})
			if err != nil {
				assert.ErrorIs(t, err, game.ErrGameFull)
				return
			}
			mu.Lock()
			pending[p.ConnectionID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	// every accepted join is answered: one with the result, the rest with game_full
	seated := 0
	for len(pending) > 0 {
		sent := emit.ExpectMatch(t, "answer to a joiner", func(s gametest.Sent) bool {
			return pending[s.ConnID] &&
				(s.Event.Type == game.EventGameResult || s.Event.Type == game.EventError)
		})
		delete(pending, sent.ConnID)
		if sent.Event.Type == game.EventGameResult {
			seated++
			continue
		}
		assert.Equal(t, game.ErrGameFull.Code, sent.Event.Payload.(*game.Error).Code)
	}
	assert.Equal(t, 1, seated)
	assert.Len(t, rec.Deposits(), 2)
	require.Eventually(t, func() bool { return len(l.Open()) == 0 }, gametest.Wait, time.Millisecond)
}

func TestJoinOwnGameRejected(t *testing.T) {
	l, emit, _, ctx := newTestLobby(t, 0)
	alice := gametest.Player("1", "alice")

	id, err := l.Create(CreateGame{Origin: alice, Amount: 100})
	require.NoError(t, err)

	require.NoError(t, l.Route(ctx, JoinGame{Origin: alice, GameID: id}))
	sent := emit.ExpectTo(t, alice.ConnectionID, game.EventError)
	assert.ErrorIs(t, sent.Event.Payload.(*game.Error), game.ErrAlreadyJoined)

	require.Len(t, l.Open(), 1)
	assert.Equal(t, id, l.Open()[0].GameID)
}

func TestJoinUnknownGame(t *testing.T) {
	l, _, _, ctx := newTestLobby(t, 0)
	bob := gametest.Player("2", "bob")

	err := l.Route(ctx, JoinGame{Origin: bob, GameID: uuid.NewString()})
	assert.ErrorIs(t, err, game.ErrGameNotFound)

	err = l.Route(ctx, Spectate{Origin: bob, GameID: uuid.NewString()})
	assert.ErrorIs(t, err, game.ErrGameNotFound)
}

func TestConnectedListsOpenGames(t *testing.T) {
	l, emit, _, _ := newTestLobby(t, 0)

	_, err := l.Create(CreateGame{Origin: gametest.Player("1", "alice"), Amount: 100})
	require.NoError(t, err)
	_, err = l.Create(CreateGame{Origin: gametest.Player("2", "bob"), Amount: 200})
	require.NoError(t, err)

	l.Connected(game.Origin{ConnectionID: "viewer"})
	state := emit.ExpectTo(t, "viewer", game.EventState).Event.Payload.(lobbyState)
	assert.Len(t, state.Games, 2)
}

func TestDecode(t *testing.T) {
	l, _, _, _ := newTestLobby(t, 0)
	alice := gametest.Player("1", "alice")
	id := uuid.NewString()

	a, err := l.Decode(alice, "create", []byte(`{"amount":5}`))
	require.NoError(t, err)
	assert.Equal(t, CreateGame{Origin: alice, Amount: 500}, a)

	a, err = l.Decode(alice, "join", []byte(`{"game_id":"`+id+`"}`))
	require.NoError(t, err)
	assert.Equal(t, JoinGame{Origin: alice, GameID: id}, a)

	anon := game.Origin{ConnectionID: "anon"}
	a, err = l.Decode(anon, "spectate", []byte(`{"game_id":"`+id+`"}`))
	require.NoError(t, err)
	assert.Equal(t, Spectate{Origin: anon, GameID: id}, a)

	_, err = l.Decode(anon, "join", []byte(`{"game_id":"`+id+`"}`))
	assert.ErrorIs(t, err, game.ErrUnauthenticated)

	_, err = l.Decode(alice, "join", []byte(`{"game_id":"nope"}`))
	assert.Equal(t, game.KindValidation, game.AsError(err).Kind)
}
