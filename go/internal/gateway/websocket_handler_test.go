package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/casino/go/internal/game"
)

// echoRouter replies to every echo with a state event for the sender.
type echoRouter struct {
	stubRouter
	hub *Hub
}

func (r *echoRouter) Route(ctx context.Context, a game.Action) error {
	if err := r.stubRouter.Route(ctx, a); err != nil {
		return err
	}
	e := a.(echo)
	r.hub.Broadcast(game.Event{Type: game.EventState, Payload: map[string]string{
		"from": e.Participant.ID,
		"text": e.Text,
	}})
	return nil
}

func startServer(t *testing.T, identity IdentityResolver) (*httptest.Server, *Hub, *echoRouter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := NewService(ctx, DefaultConfig(), identity)
	hub := svc.AddHub("crash", "/ws/crash")
	router := &echoRouter{hub: hub}
	hub.Attach(router)
	svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hub, router
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(wait)))
	var env Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv, hub, router := startServer(t, QueryResolver{})

	alice := dial(t, srv, "/ws/crash?user_id=1&name=alice")
	bob := dial(t, srv, "/ws/crash?user_id=2&name=bob")
	require.Eventually(t, func() bool { return hub.Stats().Connections == 2 }, wait, 5*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "echo", "payload": map[string]string{"text": "hi"}}))

	for _, ws := range []*websocket.Conn{alice, bob} {
		env := readEnvelope(t, ws)
		assert.Equal(t, "state", env.Type)
		assert.JSONEq(t, `{"from":"1","text":"hi"}`, string(env.Payload))
	}

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "unknown"}))
	env := readEnvelope(t, bob)
	assert.Equal(t, "error", env.Type)
	var gerr game.Error
	require.NoError(t, json.Unmarshal(env.Payload, &gerr))
	assert.Equal(t, game.ErrUnknownAction.Code, gerr.Code)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return hub.Stats().Connections == 1 }, wait, 5*time.Millisecond)

	router.mu.Lock()
	defer router.mu.Unlock()
	assert.Len(t, router.connected, 2)
	assert.Len(t, router.disconnected, 1)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv, _, _ := startServer(t, NewJWTResolver(testSecret, false))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/crash?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	srv, hub, _ := startServer(t, QueryResolver{})
	dial(t, srv, "/ws/crash?user_id=1")
	require.Eventually(t, func() bool { return hub.Stats().Connections == 1 }, wait, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Total int        `json:"total_connections"`
		Hubs  []HubStats `json:"hubs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Hubs, 1)
	assert.Equal(t, "crash", body.Hubs[0].Name)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://play.example.com"})

	r := httptest.NewRequest("GET", "/ws/crash", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://play.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))

	assert.True(t, checkOrigin([]string{"*"})(r))
}

func TestEnvelopeCodec(t *testing.T) {
	data, err := Encode(game.Event{Type: game.EventWinner, Payload: map[string]int{"roll": 7}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"winner","payload":{"roll":7}}`, string(data))

	env, err := DecodeEnvelope([]byte(`{"type":"bet","payload":{"amount":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "bet", env.Type)

	_, err = DecodeEnvelope([]byte(`{"payload":{}}`))
	assert.Equal(t, game.KindValidation, game.AsError(err).Kind)

	_, err = DecodeEnvelope([]byte(`[`))
	assert.Equal(t, game.KindValidation, game.AsError(err).Kind)
}
