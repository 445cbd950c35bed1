package bridge

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"

	"github.com/0xhank/casper/internal/shared/types"
)

// Script tags for the libraries generated components may rely on. Loaded
// once per mount; re-renders reuse the already-loaded scripts.
const libraryPreamble = `<script src="https://cdn.tailwindcss.com"></script>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>`

// statePreamble defines the in-frame state API. The state variable is
// assigned before the component script runs; setState and mergeState update
// it and notify the host through postMessage.
const statePreamble = `var state = %s;
function setState(next) {
  if (typeof next === 'function') { next = next(state); }
  if (next === null || typeof next !== 'object') { return; }
  state = next;
  window.parent.postMessage({ type: 'STATE_UPDATE', state: state }, '*');
}
function mergeState(partial) {
  if (partial === null || typeof partial !== 'object') { return; }
  for (var key in partial) { state[key] = partial[key]; }
  window.parent.postMessage({ type: 'STATE_UPDATE', state: state }, '*');
}`

// newMarkupPolicy builds the sanitizer for generated markup: user-generated
// content plus the interactive elements components are built from. Script
// and event-handler attributes stay forbidden; behavior arrives only through
// the separately injected component script.
func newMarkupPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("button", "input", "form", "textarea", "select", "option", "label", "canvas", "progress")
	p.AllowAttrs("id", "class", "style").Globally()
	p.AllowAttrs("type", "placeholder", "value", "name", "min", "max", "step", "rows", "disabled").OnElements("input", "textarea", "select", "button", "progress")
	p.AllowAttrs("for").OnElements("label")
	p.AllowAttrs("width", "height").OnElements("canvas")
	return p
}

// Renderer produces iframe-ready documents from generated content
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer creates a document renderer
func NewRenderer() *Renderer {
	return &Renderer{policy: newMarkupPolicy()}
}

// Sanitize strips disallowed markup from generated HTML
func (r *Renderer) Sanitize(markup string) string {
	return r.policy.Sanitize(markup)
}

// Document renders the full iframe document for a mount. The state is seeded
// and the state API defined before the component script, which is wrapped in
// a reinvocable initComponent function. When includeLibraries is false the
// library preamble is omitted; the frame reuses scripts already loaded.
func (r *Renderer) Document(content *types.GeneratedContent, state types.ComponentState, includeLibraries bool) (string, error) {
	if state == nil {
		state = types.ComponentState{}
	}
	stateJSON, err := sonic.MarshalString(map[string]interface{}(state))
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if includeLibraries {
		b.WriteString(libraryPreamble)
		b.WriteString("\n")
	}
	b.WriteString("</head>\n<body class=\"w-full h-full\">\n")
	b.WriteString(r.Sanitize(content.HTML))
	b.WriteString("\n<script>\n")
	fmt.Fprintf(&b, statePreamble, stateJSON)
	b.WriteString("\nfunction initComponent() {\n")
	b.WriteString(content.JS)
	b.WriteString("\n}\nwindow.addEventListener('load', initComponent);\n")
	b.WriteString("window.addEventListener('message', function(event) {\n")
	b.WriteString("  if (event.data && event.data.type === 'STATE_UPDATE') { state = event.data.state; initComponent(); }\n")
	b.WriteString("});\n</script>\n</body>\n</html>\n")

	return b.String(), nil
}
