package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/shared/types"
)

// ErrNoHandler is returned when an event is dispatched to an element with no
// registered handler.
var ErrNoHandler = errors.New("no handler registered for event")

// Runtime executes a generated component script in an isolated goja context.
// The script sees exactly three host-provided capabilities: the state API
// (state, setState, mergeState), a document proxy over the generated markup,
// and the window.parent.postMessage shim. Everything else is withheld.
type Runtime struct {
	vm      *goja.Runtime
	dom     *DOM
	mailbox *Mailbox
	state   types.ComponentState
	timeout time.Duration
	logger  *zap.Logger

	// event handlers keyed by element, then event name
	handlers map[*Element]map[string]goja.Callable

	mu sync.Mutex
}

// NewRuntime creates a runtime over the given document proxy and mailbox
func NewRuntime(dom *DOM, mailbox *Mailbox, timeout time.Duration, logger *zap.Logger) (*Runtime, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r := &Runtime{
		vm:       goja.New(),
		dom:      dom,
		mailbox:  mailbox,
		state:    types.ComponentState{},
		timeout:  timeout,
		logger:   logger.Named("runtime"),
		handlers: make(map[*Element]map[string]goja.Callable),
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// SeedState installs the initial state. Must be called before Execute so the
// component script observes its state from the first statement.
func (r *Runtime) SeedState(state types.ComponentState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state == nil {
		state = types.ComponentState{}
	}
	r.state = state.Clone()
	r.vm.Set("state", map[string]interface{}(r.state))
}

// Execute wraps the component script in a reinvocable initComponent function
// and runs it once. Later state pushes re-run initComponent via Rerun.
func (r *Runtime) Execute(ctx context.Context, script string) error {
	wrapped := "function initComponent() {\n" + script + "\n}\ninitComponent();"
	return r.run(ctx, wrapped)
}

// Rerun re-invokes the component's initComponent function
func (r *Runtime) Rerun(ctx context.Context) error {
	return r.run(ctx, "if (typeof initComponent === 'function') { initComponent(); }")
}

func (r *Runtime) run(ctx context.Context, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm.ClearInterrupt()
	done := make(chan struct{})
	defer close(done)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	if _, err := r.vm.RunString(script); err != nil {
		return fmt.Errorf("component script failed: %w", err)
	}
	return nil
}

// State returns a copy of the runtime's current state
func (r *Runtime) State() types.ComponentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// SetHostState replaces the in-context state with the host's canonical copy
// without emitting a STATE_UPDATE back.
func (r *Runtime) SetHostState(state types.ComponentState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state.Clone()
	r.vm.Set("state", map[string]interface{}(r.state))
}

// Dispatch simulates an event on an element, invoking its registered handler
func (r *Runtime) Dispatch(elementID, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem := r.dom.GetByID(elementID)
	if elem == nil {
		return fmt.Errorf("no element with id %q", elementID)
	}
	handler, ok := r.handlers[elem][event]
	if !ok {
		return fmt.Errorf("%w: %s on #%s", ErrNoHandler, event, elementID)
	}
	if _, err := handler(goja.Undefined(), r.eventObject(event)); err != nil {
		return fmt.Errorf("event handler failed: %w", err)
	}
	return nil
}

// Close releases the runtime. The mailbox is owned by the mount and closed
// there.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	r.handlers = nil
}

// setupGlobals installs the state API, the document proxy, and the
// postMessage shim. Dangerous globals stay absent; timers are inert because
// the runtime has no event loop.
func (r *Runtime) setupGlobals() error {
	vm := r.vm

	vm.Set("setState", r.jsSetState)
	vm.Set("mergeState", r.jsMergeState)

	parent := vm.NewObject()
	if err := parent.Set("postMessage", r.jsPostMessage); err != nil {
		return err
	}
	window := vm.NewObject()
	if err := window.Set("parent", parent); err != nil {
		return err
	}
	if err := window.Set("mergeState", r.jsMergeState); err != nil {
		return err
	}
	vm.Set("window", window)

	console := vm.NewObject()
	console.Set("log", r.makeConsoleFunc("log"))
	console.Set("warn", r.makeConsoleFunc("warn"))
	console.Set("error", r.makeConsoleFunc("error"))
	vm.Set("console", console)

	var timerID int64
	inertTimer := func(call goja.FunctionCall) goja.Value {
		timerID++
		return vm.ToValue(timerID)
	}
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", inertTimer)
	vm.Set("setInterval", inertTimer)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)

	return r.injectDocument()
}

// jsSetState replaces the whole state. A function argument is treated as a
// functional updater receiving the current state.
func (r *Runtime) jsSetState(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Undefined()
	}
	arg := call.Arguments[0]

	if updater, ok := goja.AssertFunction(arg); ok {
		result, err := updater(goja.Undefined(), r.vm.ToValue(map[string]interface{}(r.state.Clone())))
		if err != nil {
			r.logger.Warn("setState updater threw", zap.Error(err))
			return goja.Undefined()
		}
		arg = result
	}

	next, ok := exportState(arg)
	if !ok {
		r.logger.Warn("setState called with a non-object value")
		return goja.Undefined()
	}
	r.applyState(next)
	return goja.Undefined()
}

// jsMergeState shallow-merges the argument into the current state
func (r *Runtime) jsMergeState(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Undefined()
	}
	partial, ok := exportState(call.Arguments[0])
	if !ok {
		r.logger.Warn("mergeState called with a non-object value")
		return goja.Undefined()
	}

	next := r.state.Clone()
	if next == nil {
		next = types.ComponentState{}
	}
	for k, v := range partial {
		next[k] = v
	}
	r.applyState(next)
	return goja.Undefined()
}

// applyState stores the new state, exposes it to the script, and notifies
// the host. Called with the runtime lock already held by the executing
// script's goroutine.
func (r *Runtime) applyState(next types.ComponentState) {
	r.state = next
	r.vm.Set("state", map[string]interface{}(r.state))
	r.mailbox.Send(types.BridgeMessage{
		Type:  types.MessageStateUpdate,
		State: r.state.Clone(),
	})
}

// jsPostMessage is the window.parent.postMessage shim. COMMAND and
// STATE_UPDATE messages relay to the host mailbox; everything else is
// dropped. The origin argument is accepted and ignored.
func (r *Runtime) jsPostMessage(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return goja.Undefined()
	}
	raw, ok := call.Arguments[0].Export().(map[string]interface{})
	if !ok {
		return goja.Undefined()
	}

	switch raw["type"] {
	case types.MessageCommand:
		command, _ := raw["command"].(string)
		if command == "" {
			return goja.Undefined()
		}
		r.mailbox.Send(types.BridgeMessage{
			Type:    types.MessageCommand,
			Command: command,
		})
	case types.MessageStateUpdate:
		if state, ok := raw["state"].(map[string]interface{}); ok {
			r.applyState(types.ComponentState(state))
		}
	default:
		r.logger.Debug("dropping unknown bridge message",
			zap.Any("type", raw["type"]),
		)
	}
	return goja.Undefined()
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}
		switch level {
		case "error":
			r.logger.Error("component console", zap.String("message", msg))
		case "warn":
			r.logger.Warn("component console", zap.String("message", msg))
		default:
			r.logger.Debug("component console", zap.String("message", msg))
		}
		return goja.Undefined()
	}
}

func (r *Runtime) eventObject(event string) goja.Value {
	obj := r.vm.NewObject()
	obj.Set("type", event)
	obj.Set("preventDefault", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	obj.Set("stopPropagation", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	return obj
}

func exportState(val goja.Value) (types.ComponentState, bool) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, false
	}
	m, ok := val.Export().(map[string]interface{})
	if !ok {
		return nil, false
	}
	return types.ComponentState(m), true
}
