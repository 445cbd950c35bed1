package shell

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/pipeline"
	"github.com/0xhank/casper/internal/shared/id"
	"github.com/0xhank/casper/internal/shared/types"
)

// Runner is the slice of the pipeline the shell depends on
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*types.GeneratedContent, error)
}

// Session holds one chat's state: the append-only transcript, the current
// generated content, and the host's canonical component state. All methods
// are safe for concurrent use; one generation runs at a time per session.
type Session struct {
	ID       id.SessionID
	entityID string
	runner   Runner
	logger   *zap.Logger

	mu      sync.Mutex
	history []types.ChatMessage
	content *types.GeneratedContent
	state   types.ComponentState
	pending string
	busy    bool
}

func newSession(entityID string, runner Runner, logger *zap.Logger) *Session {
	return &Session{
		ID:       id.NewSessionID(),
		entityID: entityID,
		runner:   runner,
		logger:   logger,
		state:    types.ComponentState{},
	}
}

// ErrBusy is returned when a generation is already in flight for the session
var ErrBusy = errors.New("a generation is already in flight")

// Submit runs one generation for the user's prompt and applies the result:
// GEN resets component state to the envelope's initial state, UPDATE and
// COMMAND preserve it, PROMPT leaves content and state untouched. An
// authorization-required failure stores the prompt for replay after the
// OAuth round-trip.
func (s *Session) Submit(ctx context.Context, prompt string) (*types.GeneratedContent, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	contextual := s.buildContext(prompt)
	s.mu.Unlock()

	content, err := s.runner.Run(ctx, pipeline.Request{
		EntityID: s.entityID,
		Prompt:   contextual,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false

	if err != nil {
		if _, ok := broker.AsAuthRequired(err); ok {
			s.pending = prompt
		}
		s.history = append(s.history,
			types.ChatMessage{Message: prompt, IsUser: true},
			types.ChatMessage{Message: "Failed to generate a response.", IsUser: false},
		)
		return nil, err
	}

	s.history = append(s.history,
		types.ChatMessage{Message: prompt, IsUser: true},
		types.ChatMessage{Message: content.Description, IsUser: false},
	)

	switch content.Type {
	case types.IntentPrompt:
		// Conversational reply; the mounted component is untouched
	case types.IntentGen:
		s.content = content
		s.state = content.InitialState.Clone()
	default: // UPDATE, COMMAND
		s.content = content
		if len(s.state) == 0 {
			s.state = content.InitialState.Clone()
		}
	}
	return content, nil
}

// ApplyStateUpdate installs a state pushed by the sandbox, last write wins.
// Replaying an identical update is a no-op in effect.
func (s *Session) ApplyStateUpdate(state types.ComponentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
}

// HandleCommand resubmits a component-issued command as a new prompt
func (s *Session) HandleCommand(ctx context.Context, command string) (*types.GeneratedContent, error) {
	return s.Submit(ctx, command)
}

// RetryPending replays the prompt stored when authorization was required.
// Returns nil content when nothing is pending.
func (s *Session) RetryPending(ctx context.Context) (*types.GeneratedContent, error) {
	s.mu.Lock()
	prompt := s.pending
	s.pending = ""
	s.mu.Unlock()

	if prompt == "" {
		return nil, nil
	}
	return s.Submit(ctx, prompt)
}

// State returns the host's canonical component state
func (s *Session) State() types.ComponentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Content returns the current generated content, nil before the first GEN
func (s *Session) Content() *types.GeneratedContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// History returns a copy of the chat transcript
func (s *Session) History() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ChatMessage{}, s.history...)
}

// buildContext assembles the contextual prompt: transcript, current
// component code and state, then the user's message. Caller holds the lock.
func (s *Session) buildContext(prompt string) string {
	var b strings.Builder

	if len(s.history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range s.history {
			if msg.IsUser {
				b.WriteString("User: ")
			} else {
				b.WriteString("Assistant: ")
			}
			b.WriteString(msg.Message)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if s.content != nil && s.content.HasCode() {
		b.WriteString("Current component code:\n")
		if s.content.HTML != "" {
			b.WriteString(s.content.HTML)
			b.WriteString("\n")
			b.WriteString(s.content.JS)
		} else {
			b.WriteString(s.content.JSX)
		}
		b.WriteString("\n\n")

		if stateJSON, err := sonic.MarshalString(map[string]interface{}(s.state)); err == nil {
			b.WriteString("Current component state:\n")
			b.WriteString(stateJSON)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("User request: ")
	b.WriteString(prompt)
	return b.String()
}
