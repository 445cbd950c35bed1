package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/shared/types"
)

func newTestGenerator(reply string) *Generator {
	model := &fakeLLM{complete: func(_, _ string) (string, error) {
		return reply, nil
	}}
	return NewGenerator(model, "main", zap.NewNop())
}

func TestGenerateAttachesIntent(t *testing.T) {
	g := newTestGenerator(validEnvelope)

	content, err := g.Generate(context.Background(), types.IntentUpdate, "Add a reset button", nil, DefaultLayoutPlan)
	require.NoError(t, err)
	assert.Equal(t, types.IntentUpdate, content.Type)
	assert.Equal(t, "A simple counter.", content.Description)
}

func TestGenerateRecoversFencedReply(t *testing.T) {
	g := newTestGenerator("```json\n" + validEnvelope + "\n```")

	content, err := g.Generate(context.Background(), types.IntentGen, "Create a counter", nil, DefaultLayoutPlan)
	require.NoError(t, err)
	assert.True(t, content.HasCode())
}

func TestGenerateRecoversControlCharacters(t *testing.T) {
	dirty := "\uFEFF" + "\u200B" + `{"spec":"s","html":"<div id='a'></div>","js":"","initialState":{},"description":"d` + "\x07" + `"}`
	g := newTestGenerator(dirty)

	content, err := g.Generate(context.Background(), types.IntentGen, "x", nil, DefaultLayoutPlan)
	require.NoError(t, err)
	assert.Equal(t, "s", content.Spec)
	assert.Equal(t, "d", content.Description)
}

func TestGenerateRejectsProseReply(t *testing.T) {
	g := newTestGenerator("Sure! Here's a counter component for you.")

	_, err := g.Generate(context.Background(), types.IntentGen, "Create a counter", nil, DefaultLayoutPlan)
	assert.ErrorIs(t, err, ErrInvalidModelResponse)
}

func TestGenerateRejectsIncompleteEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"missing spec", `{"html":"<div></div>","initialState":{},"description":"d"}`},
		{"missing description", `{"spec":"s","html":"<div></div>","initialState":{}}`},
		{"missing code", `{"spec":"s","initialState":{},"description":"d"}`},
		{"truncated json", `{"spec":"s","html":"<div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(tt.reply)
			_, err := g.Generate(context.Background(), types.IntentGen, "x", nil, DefaultLayoutPlan)
			assert.ErrorIs(t, err, ErrInvalidModelResponse)
		})
	}
}

func TestGenerateDefaultsMissingInitialState(t *testing.T) {
	g := newTestGenerator(`{"spec":"s","html":"<div></div>","js":"","description":"d"}`)

	content, err := g.Generate(context.Background(), types.IntentGen, "x", nil, DefaultLayoutPlan)
	require.NoError(t, err)
	require.NotNil(t, content.InitialState)
	assert.Empty(t, content.InitialState)
}

func TestCleanModelReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"bom prefix", "\uFEFF{\"a\":1}", `{"a":1}`},
		{"zero width", "{\"a\":\u200B1}", `{"a":1}`},
		{"bell character", "{\"a\":\x071}", `{"a":1}`},
		{"doubled newline escape", `{"js":"a();\\nb();"}`, `{"js":"a();\nb();"}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelReply(tt.in))
		})
	}
}

func TestCleanPreservesRealWhitespace(t *testing.T) {
	in := "{\n\t\"a\": 1\n}"
	assert.Equal(t, in, cleanModelReply(in))
}

func TestDuplicateIDs(t *testing.T) {
	dupes := duplicateIDs(`<div id='x'></div><span id='x'></span><p id='y'></p>`)
	assert.Equal(t, []string{"x"}, dupes)

	assert.Empty(t, duplicateIDs(`<div id='a'></div><div id='b'></div>`))
}
