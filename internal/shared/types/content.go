package types

import "encoding/json"

// Intent classifies what a user's message asks the pipeline to do
type Intent string

const (
	IntentGen     Intent = "GEN"     // create a new component from scratch
	IntentUpdate  Intent = "UPDATE"  // modify the existing component, keep its state
	IntentCommand Intent = "COMMAND" // perform an action driven by the component
	IntentPrompt  Intent = "PROMPT"  // conversational, no component involved
)

// Valid reports whether the intent is one of the four known categories
func (i Intent) Valid() bool {
	switch i {
	case IntentGen, IntentUpdate, IntentCommand, IntentPrompt:
		return true
	}
	return false
}

// Classification is the ephemeral result of one classifier call
type Classification struct {
	Type           Intent `json:"type"`
	ToolStrategy   string `json:"toolStrategy"`
	LayoutStrategy string `json:"layoutStrategy"`
}

// ComponentState maps string keys to arbitrary JSON values. The host copy is
// canonical: the sandbox copy converges to it after each message round-trip.
type ComponentState map[string]interface{}

// Clone returns a shallow copy safe to hand across the bridge boundary
func (s ComponentState) Clone() ComponentState {
	if s == nil {
		return nil
	}
	out := make(ComponentState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// GeneratedContent is the artifact produced by one successful generation call.
// Either HTML+JS or JSX is populated, never both.
type GeneratedContent struct {
	Spec         string         `json:"spec"`
	HTML         string         `json:"html,omitempty"`
	JS           string         `json:"js,omitempty"`
	JSX          string         `json:"jsx,omitempty"`
	InitialState ComponentState `json:"initialState"`
	Description  string         `json:"description"`
	Type         Intent         `json:"type"`
}

// HasCode reports whether the envelope carries renderable code
func (g *GeneratedContent) HasCode() bool {
	return g.HTML != "" || g.JSX != ""
}

// ChatMessage is one entry in the append-only chat transcript
type ChatMessage struct {
	Message string `json:"message"`
	IsUser  bool   `json:"isUser"`
}

// ToolConnection reports whether a catalog service is connected for an entity.
// The external broker is the source of truth; connections are never cached.
type ToolConnection struct {
	ID          string `json:"id"`
	IsConnected bool   `json:"isConnected"`
}

// ToolData is the opaque JSON blob of retrieved third-party data, threaded
// through the generator prompt unchanged. Nil means no tools applied.
type ToolData = json.RawMessage
