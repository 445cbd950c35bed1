package shell

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/pipeline"
	"github.com/0xhank/casper/internal/shared/types"
)

type fakeRunner struct {
	run      func(req pipeline.Request) (*types.GeneratedContent, error)
	requests []pipeline.Request
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*types.GeneratedContent, error) {
	f.requests = append(f.requests, req)
	return f.run(req)
}

func genContent(intent types.Intent, state types.ComponentState) *types.GeneratedContent {
	return &types.GeneratedContent{
		Spec:         "spec",
		HTML:         "<div id='x'></div>",
		JS:           "// render",
		InitialState: state,
		Description:  "built a thing",
		Type:         intent,
	}
}

func newTestManager(runner Runner) *Manager {
	return NewManager(runner, monitoring.NewMetrics(), zap.NewNop())
}

func TestSubmitGenResetsState(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return genContent(types.IntentGen, types.ComponentState{"count": 0}), nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	// Simulate prior state from an earlier component
	session.ApplyStateUpdate(types.ComponentState{"old": "data"})

	_, err := session.Submit(context.Background(), "Create a counter")
	require.NoError(t, err)

	state := session.State()
	assert.Equal(t, 0, state["count"])
	_, hasOld := state["old"]
	assert.False(t, hasOld)
}

func TestSubmitUpdatePreservesState(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return genContent(types.IntentUpdate, types.ComponentState{"count": 0, "resettable": true}), nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")
	session.ApplyStateUpdate(types.ComponentState{"count": 9})

	_, err := session.Submit(context.Background(), "Add a reset button")
	require.NoError(t, err)
	assert.Equal(t, 9, session.State()["count"])
}

func TestSubmitPromptLeavesComponentUntouched(t *testing.T) {
	calls := 0
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		calls++
		if calls == 1 {
			return genContent(types.IntentGen, types.ComponentState{"count": 0}), nil
		}
		return &types.GeneratedContent{
			Description:  "I like blue.",
			InitialState: types.ComponentState{},
			Type:         types.IntentPrompt,
		}, nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	first, err := session.Submit(context.Background(), "Create a counter")
	require.NoError(t, err)

	reply, err := session.Submit(context.Background(), "What's your favorite color?")
	require.NoError(t, err)
	assert.Equal(t, types.IntentPrompt, reply.Type)
	assert.False(t, reply.HasCode())

	// The mounted component and its state survive the conversational turn
	assert.Same(t, first, session.Content())
	assert.Equal(t, 0, session.State()["count"])
}

func TestStateUpdateLastWriteWinsAndIdempotent(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return genContent(types.IntentGen, types.ComponentState{}), nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	session.ApplyStateUpdate(types.ComponentState{"count": 1})
	session.ApplyStateUpdate(types.ComponentState{"count": 2})
	assert.Equal(t, 2, session.State()["count"])

	session.ApplyStateUpdate(types.ComponentState{"count": 2})
	assert.Equal(t, types.ComponentState{"count": 2}, session.State())
}

func TestAuthRequiredStoresPendingPrompt(t *testing.T) {
	authorized := false
	runner := &fakeRunner{run: func(req pipeline.Request) (*types.GeneratedContent, error) {
		if !authorized {
			return nil, &broker.AuthRequiredError{App: "gmail", RedirectURL: "https://auth.example.com"}
		}
		return genContent(types.IntentGen, types.ComponentState{}), nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	_, err := session.Submit(context.Background(), "Check my email")
	require.Error(t, err)
	_, ok := broker.AsAuthRequired(err)
	require.True(t, ok)

	authorized = true
	content, err := session.RetryPending(context.Background())
	require.NoError(t, err)
	require.NotNil(t, content)

	// The replayed request carries the original prompt
	last := runner.requests[len(runner.requests)-1]
	assert.Contains(t, last.Prompt, "Check my email")

	// Nothing left to retry
	content, err = session.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestCommandResubmitsAsPrompt(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return genContent(types.IntentCommand, types.ComponentState{}), nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	_, err := session.HandleCommand(context.Background(), "Create a pie chart")
	require.NoError(t, err)
	assert.Contains(t, runner.requests[0].Prompt, "Create a pie chart")
}

func TestContextIncludesHistoryAndComponent(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return genContent(types.IntentGen, types.ComponentState{"count": 0}), nil
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	_, err := session.Submit(context.Background(), "Create a counter")
	require.NoError(t, err)
	session.ApplyStateUpdate(types.ComponentState{"count": 3})

	_, err = session.Submit(context.Background(), "Add a reset button")
	require.NoError(t, err)

	second := runner.requests[1].Prompt
	assert.Contains(t, second, "Previous conversation:")
	assert.Contains(t, second, "User: Create a counter")
	assert.Contains(t, second, "Current component code:")
	assert.Contains(t, second, "<div id='x'></div>")
	assert.Contains(t, second, `"count":3`)
	assert.True(t, strings.HasSuffix(second, "User request: Add a reset button"))
}

func TestFailureAppendsTranscriptMessage(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return nil, errors.New("model unavailable")
	}}
	session := newTestManager(runner).GetOrCreate("k", "default")

	_, err := session.Submit(context.Background(), "Create a counter")
	require.Error(t, err)

	history := session.History()
	require.Len(t, history, 2)
	assert.True(t, history[0].IsUser)
	assert.False(t, history[1].IsUser)
}

func TestManagerReusesSessionsByKey(t *testing.T) {
	runner := &fakeRunner{run: func(_ pipeline.Request) (*types.GeneratedContent, error) {
		return genContent(types.IntentGen, nil), nil
	}}
	m := newTestManager(runner)

	a := m.GetOrCreate("alpha", "default")
	b := m.GetOrCreate("alpha", "default")
	c := m.GetOrCreate("beta", "default")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, m.Count())

	m.Remove("alpha")
	assert.Equal(t, 1, m.Count())
}
