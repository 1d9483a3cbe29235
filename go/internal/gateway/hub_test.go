package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/casino/go/internal/game"
	"github.com/mcdev12/casino/go/internal/models"
)

const wait = 2 * time.Second

type echo struct {
	game.Origin
	Text string
}

func (e echo) From() game.Origin { return e.Origin }

// stubRouter accepts "echo" messages and records lifecycle calls.
type stubRouter struct {
	mu           sync.Mutex
	routed       []game.Action
	connected    []string
	disconnected []string
	routeErr     error
}

func (r *stubRouter) Decode(origin game.Origin, msgType string, payload []byte) (game.Action, error) {
	if msgType != "echo" {
		return nil, game.ErrUnknownAction
	}
	var p struct {
		Text string `json:"text"`
	}
	if err := game.DecodePayload(payload, &p); err != nil {
		return nil, err
	}
	return echo{Origin: origin, Text: p.Text}, nil
}

func (r *stubRouter) Route(_ context.Context, a game.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, a)
	return r.routeErr
}

func (r *stubRouter) Connected(o game.Origin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, o.ConnectionID)
}

func (r *stubRouter) Disconnected(o game.Origin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, o.ConnectionID)
}

func (r *stubRouter) actions() []game.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]game.Action(nil), r.routed...)
}

func startHub(t *testing.T) (*Hub, *stubRouter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := &stubRouter{}
	hub := NewHub("test", 64)
	hub.Attach(router)
	go hub.Run(ctx)
	return hub, router
}

func receive(t *testing.T, s *fakeSink) Envelope {
	t.Helper()
	select {
	case data := <-s.recv:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(wait):
		t.Fatal("timed out waiting for delivery")
		return Envelope{}
	}
}

func TestHubBroadcastOrder(t *testing.T) {
	hub, _ := startHub(t)
	a, b := newFakeSink(), newFakeSink()
	hub.Register("a", a)
	hub.Register("b", b)

	for i := 0; i < 10; i++ {
		hub.Broadcast(game.Event{Type: game.EventMultiplier, Payload: map[string]int{"seq": i}})
	}

	for _, sink := range []*fakeSink{a, b} {
		for i := 0; i < 10; i++ {
			env := receive(t, sink)
			assert.Equal(t, "multiplier", env.Type)
			assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(env.Payload))
		}
	}
}

func TestHubSendTargetsOneConnection(t *testing.T) {
	hub, _ := startHub(t)
	a, b := newFakeSink(), newFakeSink()
	hub.Register("a", a)
	hub.Register("b", b)

	hub.Send("a", game.Event{Type: game.EventState, Payload: "hello"})
	hub.Send("missing", game.Event{Type: game.EventState, Payload: "nobody"})
	hub.Broadcast(game.Event{Type: game.EventReset, Payload: nil})

	assert.Equal(t, "state", receive(t, a).Type)
	assert.Equal(t, "reset", receive(t, a).Type)
	assert.Equal(t, "reset", receive(t, b).Type)
}

func TestHubDropsFailingSink(t *testing.T) {
	hub, _ := startHub(t)
	good, bad := newFakeSink(), newFakeSink()
	bad.err = ErrSendBufferFull
	hub.Register("good", good)
	hub.Register("bad", bad)

	hub.Broadcast(game.Event{Type: game.EventCrash, Payload: nil})
	assert.Equal(t, "crash", receive(t, good).Type)

	require.Eventually(t, bad.isClosed, wait, 5*time.Millisecond)
	_, ok := hub.registry.Get("bad")
	assert.False(t, ok)
	assert.Equal(t, 1, hub.Stats().Connections)
}

func TestHubConnectAndDisconnect(t *testing.T) {
	hub, router := startHub(t)
	origin := game.Origin{ConnectionID: "c1", Participant: models.Participant{ID: "1", Name: "alice"}}

	hub.Connect(origin, newFakeSink())
	assert.Equal(t, 1, hub.Stats().Connections)

	hub.Disconnect(origin)
	hub.Disconnect(origin)
	assert.Zero(t, hub.Stats().Connections)

	router.mu.Lock()
	defer router.mu.Unlock()
	assert.Equal(t, []string{"c1"}, router.connected)
	assert.Equal(t, []string{"c1", "c1"}, router.disconnected)
}

func TestHubHandle(t *testing.T) {
	hub, router := startHub(t)
	origin := game.Origin{ConnectionID: "c1"}
	ctx := context.Background()

	require.NoError(t, hub.Handle(ctx, origin, []byte(`{"type":"echo","payload":{"text":"hi"}}`)))
	require.Len(t, router.actions(), 1)
	assert.Equal(t, echo{Origin: origin, Text: "hi"}, router.actions()[0])

	err := hub.Handle(ctx, origin, []byte(`{"type":"nope"}`))
	assert.ErrorIs(t, err, game.ErrUnknownAction)

	err = hub.Handle(ctx, origin, []byte(`not json`))
	assert.Equal(t, game.KindValidation, game.AsError(err).Kind)

	router.routeErr = game.ErrGameFull
	err = hub.Handle(ctx, origin, []byte(`{"type":"echo","payload":{"text":"again"}}`))
	assert.ErrorIs(t, err, game.ErrGameFull)
}

func TestHubRejectSendsErrorEvent(t *testing.T) {
	hub, _ := startHub(t)
	sink := newFakeSink()
	origin := game.Origin{ConnectionID: "c1"}
	hub.Register("c1", sink)

	hub.Reject(origin, game.ErrAlreadyBet)
	env := receive(t, sink)
	assert.Equal(t, "error", env.Type)
	assert.Contains(t, string(env.Payload), game.ErrAlreadyBet.Code)

	hub.Reject(origin, errors.New("database exploded"))
	env = receive(t, sink)
	assert.Equal(t, "error", env.Type)
	assert.NotContains(t, string(env.Payload), "exploded")
}

type discardSink struct {
	sent atomic.Int64
}

func (d *discardSink) Send([]byte) error {
	d.sent.Add(1)
	return nil
}

func (d *discardSink) Close() error { return nil }

func TestHubBroadcastDuringRegistryChurn(t *testing.T) {
	hub, _ := startHub(t)
	stable := newFakeSink()
	hub.Register("stable", stable)

	const (
		churners   = 8
		broadcasts = 50
	)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < churners; i++ {
		id := fmt.Sprintf("churn-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer hub.Unregister(id)
			for {
				select {
				case <-stop:
					return
				default:
				}
				hub.Register(id, &discardSink{})
				hub.Send(id, game.Event{Type: game.EventState, Payload: id})
				hub.Unregister(id)
			}
		}()
	}

	for i := 0; i < broadcasts; i++ {
		hub.Broadcast(game.Event{Type: game.EventMultiplier, Payload: map[string]int{"seq": i}})
	}
	for i := 0; i < broadcasts; i++ {
		env := receive(t, stable)
		assert.Equal(t, "multiplier", env.Type)
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(env.Payload))
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, 1, hub.Stats().Connections)
	assert.False(t, stable.isClosed())
}

func TestHubSendReportsEncodeFailure(t *testing.T) {
	hub, _ := startHub(t)
	a, b := newFakeSink(), newFakeSink()
	hub.Register("a", a)
	hub.Register("b", b)

	hub.Send("a", game.Event{Type: game.EventState, Payload: make(chan int)})
	env := receive(t, a)
	assert.Equal(t, "error", env.Type)
	var gerr game.Error
	require.NoError(t, json.Unmarshal(env.Payload, &gerr))
	assert.Equal(t, game.ErrInternal.Code, gerr.Code)

	// a broadcast that cannot be encoded reaches nobody
	hub.Broadcast(game.Event{Type: game.EventState, Payload: func() {}})
	hub.Broadcast(game.Event{Type: game.EventReset, Payload: nil})
	assert.Equal(t, "reset", receive(t, a).Type)
	assert.Equal(t, "reset", receive(t, b).Type)
}
