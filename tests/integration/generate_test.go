package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "github.com/0xhank/casper/internal/api/http"
	"github.com/0xhank/casper/internal/bridge"
	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/infrastructure/tracing"
	"github.com/0xhank/casper/internal/llm"
	"github.com/0xhank/casper/internal/pipeline"
	"github.com/0xhank/casper/internal/shared/types"
	"github.com/0xhank/casper/internal/shell"
	"github.com/0xhank/casper/tests/helpers/testutil"
)

const genEnvelope = `{
	"spec": "A counter with an increment button.",
	"html": "<div><span id='count'>0</span><button id='inc'>+1</button></div>",
	"js": "document.getElementById('inc').onclick = function() { mergeState({ count: state.count + 1 }); };",
	"initialState": {"count": 0},
	"description": "A simple counter app.",
	"type": "GEN"
}`

// stubCompletions wires the mock model so each pipeline stage gets a
// deterministic reply, matched by the stage's system prompt.
func stubCompletions(model *testutil.MockModelClient, classification, envelope string) {
	systemContains := func(fragment string) interface{} {
		return mock.MatchedBy(func(messages []llm.Message) bool {
			return len(messages) > 0 && strings.Contains(messages[0].Content, fragment)
		})
	}

	model.On("Complete", mock.Anything, mock.Anything, systemContains("You are a classifier")).
		Return(classification, nil).Maybe()
	model.On("Complete", mock.Anything, mock.Anything, systemContains("Available tool categories")).
		Return(`[]`, nil).Maybe()
	model.On("Complete", mock.Anything, mock.Anything, systemContains("layout planning assistant")).
		Return("Stack the counter above the button.", nil).Maybe()
	model.On("Complete", mock.Anything, mock.Anything, systemContains("generates interactive HTML/JS")).
		Return(envelope, nil).Maybe()
	model.On("Complete", mock.Anything, mock.Anything, systemContains("reply conversationally")).
		Return("Happy to help!", nil).Maybe()
}

type env struct {
	model  *testutil.MockModelClient
	broker *testutil.MockBroker
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("test", logger)

	model := new(testutil.MockModelClient)
	toolBroker := testutil.NewMockBroker(t)
	catalog := broker.DefaultCatalog()

	classifier := pipeline.NewClassifier(model, "mini", logger)
	planner := pipeline.NewPlanner(model, "mini", logger)
	fetcher := pipeline.NewFetcher(model, toolBroker, catalog, "mini", logger)
	generator := pipeline.NewGenerator(model, "main", logger)
	pipe := pipeline.New(classifier, planner, fetcher, generator, model, "mini", metrics, tracer, logger)

	sessions := shell.NewManager(pipe, metrics, logger)
	mounts := bridge.New(metrics, logger)
	handlers := apihttp.NewHandlers(sessions, toolBroker, catalog, mounts, nil, metrics, logger)

	router := gin.New()
	router.POST("/api/generate", handlers.Generate)
	router.GET("/api/preview", handlers.Preview)
	router.GET("/api/connections", handlers.ListConnections)

	return &env{model: model, broker: toolBroker, router: router}
}

func (e *env) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", "it-sess")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("X-Session-ID", "it-sess")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndToEnd(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"GEN","toolStrategy":"Don't use tools","layoutStrategy":"Keep it compact"}`,
		genEnvelope,
	)

	rec := e.post(t, "/api/generate", `{"prompt":"make me a counter"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var content types.GeneratedContent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, types.IntentGen, content.Type)
	assert.True(t, content.HasCode())
	assert.Equal(t, "A simple counter app.", content.Description)
	require.NotNil(t, content.InitialState)
	assert.EqualValues(t, 0, content.InitialState["count"])
}

func TestGenerateThenPreview(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"GEN","toolStrategy":"Don't use tools","layoutStrategy":"Keep it compact"}`,
		genEnvelope,
	)

	rec := e.post(t, "/api/generate", `{"prompt":"make me a counter"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.get(t, "/api/preview")

	require.Equal(t, http.StatusOK, rec.Code)
	doc := rec.Body.String()
	assert.Contains(t, doc, "initComponent")
	assert.Contains(t, doc, "id=\"count\"")
}

func TestPromptSkipsGeneration(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"PROMPT","toolStrategy":"Don't use tools","layoutStrategy":"None"}`,
		genEnvelope,
	)

	rec := e.post(t, "/api/generate", `{"prompt":"what can you do?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var content types.GeneratedContent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, types.IntentPrompt, content.Type)
	assert.False(t, content.HasCode())
	assert.Equal(t, "Happy to help!", content.Description)
}

func TestFencedEnvelopeRecovered(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"GEN","toolStrategy":"Don't use tools","layoutStrategy":"Keep it compact"}`,
		"```json\n"+genEnvelope+"\n```",
	)

	rec := e.post(t, "/api/generate", `{"prompt":"make me a counter"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMalformedEnvelopeMapsTo500(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"GEN","toolStrategy":"Don't use tools","layoutStrategy":"Keep it compact"}`,
		"Sorry, I cannot produce that component.",
	)

	rec := e.post(t, "/api/generate", `{"prompt":"make me a counter"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid response format from AI", body["error"])
}

func TestTimerScenario(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"GEN","toolStrategy":"Don't use tools","layoutStrategy":"Large centered digits"}`,
		`{
			"spec": "A 60 second countdown timer with start and stop controls.",
			"html": "<div><span id='display'>60</span><button id='start'>Start</button><button id='stop'>Stop</button></div>",
			"js": "document.getElementById('display').textContent = String(state.timeRemaining);",
			"initialState": {"timeRemaining": 60, "isRunning": false},
			"description": "A 60 second timer app.",
			"type": "GEN"
		}`,
	)

	rec := e.post(t, "/api/generate", `{"prompt":"Create a 60 second timer app"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var content types.GeneratedContent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, types.IntentGen, content.Type)
	assert.EqualValues(t, 60, content.InitialState["timeRemaining"])
	assert.Equal(t, false, content.InitialState["isRunning"])
}

func TestUpdateKeepsStateKeys(t *testing.T) {
	e := newEnv(t)
	stubCompletions(e.model,
		`{"type":"GEN","toolStrategy":"Don't use tools","layoutStrategy":"Keep it compact"}`,
		genEnvelope,
	)

	rec := e.post(t, "/api/generate", `{"prompt":"make me a counter"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Follow-up classified as UPDATE; the envelope keeps the count field and
	// the session preserves its running state.
	e.model.ExpectedCalls = nil
	stubCompletions(e.model,
		`{"type":"UPDATE","toolStrategy":"Don't use tools","layoutStrategy":"Keep it compact"}`,
		`{
			"spec": "A counter with increment and reset buttons.",
			"html": "<div><span id='count'>0</span><button id='inc'>+1</button><button id='reset'>Reset</button></div>",
			"js": "document.getElementById('reset').onclick = function() { setState({ count: 0 }); };",
			"initialState": {"count": 0},
			"description": "Added a reset button.",
			"type": "UPDATE"
		}`,
	)

	rec = e.post(t, "/api/generate", `{"prompt":"Add a reset button"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var content types.GeneratedContent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, types.IntentUpdate, content.Type)
	assert.Contains(t, content.InitialState, "count")
}

func TestConnectionsReflectBroker(t *testing.T) {
	e := newEnv(t)

	rec := e.get(t, "/api/connections")

	require.Equal(t, http.StatusOK, rec.Code)
	var body types.ConnectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Connections)
	for _, conn := range body.Connections {
		assert.True(t, conn.IsConnected)
	}
}
