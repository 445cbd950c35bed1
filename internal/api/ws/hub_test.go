package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/pipeline"
	"github.com/0xhank/casper/internal/shared/types"
	"github.com/0xhank/casper/internal/shell"
)

type fakeRunner struct {
	content *types.GeneratedContent
	err     error
	reqs    []pipeline.Request
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*types.GeneratedContent, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

func envelope() *types.GeneratedContent {
	return &types.GeneratedContent{
		Type:         types.IntentCommand,
		Spec:         "An output panel.",
		HTML:         `<div id="out"></div>`,
		Description:  "done",
		InitialState: types.ComponentState{},
	}
}

func newTestHub(t *testing.T, runner shell.Runner) (*Hub, *shell.Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	sessions := shell.NewManager(runner, monitoring.NewMetrics(), logger)
	hub := NewHub(sessions, monitoring.NewMetrics(), logger)

	router := gin.New()
	router.GET("/stream", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, sessions, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionKey string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	header := map[string][]string{"X-Session-ID": {sessionKey}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestConnectionWelcome(t *testing.T) {
	_, _, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")

	msg := readMessage(t, conn)
	assert.Equal(t, "system", msg["type"])
}

func TestStateUpdateMirrorsIntoSession(t *testing.T) {
	_, sessions, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn) // welcome

	err := conn.WriteJSON(types.BridgeMessage{
		Type:  types.MessageStateUpdate,
		State: types.ComponentState{"count": float64(3)},
	})
	require.NoError(t, err)

	session := sessions.GetOrCreate("sess-1", "anonymous")
	require.Eventually(t, func() bool {
		return session.State()["count"] == float64(3)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCommandPushesEnvelope(t *testing.T) {
	runner := &fakeRunner{content: envelope()}
	_, _, srv := newTestHub(t, runner)
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn) // welcome

	err := conn.WriteJSON(types.BridgeMessage{
		Type:    types.MessageCommand,
		Command: "add item milk",
	})
	require.NoError(t, err)

	msg := readMessage(t, conn)
	assert.Equal(t, "generated", msg["type"])
	content, ok := msg["content"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "done", content["description"])
	require.Len(t, runner.reqs, 1)
	assert.Contains(t, runner.reqs[0].Prompt, "add item milk")
}

func TestEmptyCommandRejected(t *testing.T) {
	_, _, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(types.BridgeMessage{Type: types.MessageCommand}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestUnknownTypeReturnsError(t *testing.T) {
	_, _, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "telemetry"}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestPing(t *testing.T) {
	_, _, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	msg := readMessage(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestPushDeliversToLiveChannel(t *testing.T) {
	hub, _, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn)

	// Registration happens after the upgrade; wait for it.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["sess-1"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	hub.Push("sess-1", envelope())

	msg := readMessage(t, conn)
	assert.Equal(t, "generated", msg["type"])
}

func TestPushWithoutChannelIsSilent(t *testing.T) {
	hub, _, _ := newTestHub(t, &fakeRunner{content: envelope()})
	hub.Push("nobody-home", envelope())
}

func TestDisconnectDeregisters(t *testing.T) {
	hub, _, srv := newTestHub(t, &fakeRunner{content: envelope()})
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["sess-1"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["sess-1"]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCommandSurfacesOAuthRedirect(t *testing.T) {
	runner := &fakeRunner{err: &broker.AuthRequiredError{App: "gmail", RedirectURL: "https://auth.example/start"}}
	hub, _, srv := newTestHub(t, runner)
	conn := dial(t, srv, "sess-1")
	readMessage(t, conn) // welcome

	err := conn.WriteJSON(types.BridgeMessage{
		Type:    types.MessageCommand,
		Command: "send the email",
	})
	require.NoError(t, err)

	msg := readMessage(t, conn)
	assert.Equal(t, "oauth_required", msg["type"])
	assert.Equal(t, "https://auth.example/start", msg["redirectUrl"])
	assert.Equal(t, float64(1), promtest.ToFloat64(hub.metrics.AuthRequiredTotal))
}
