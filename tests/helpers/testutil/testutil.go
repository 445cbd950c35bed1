// Package testutil provides testing utilities and helpers for service tests.
package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/llm"
)

// MockModelClient is a mock implementation of llm.Client for testing.
type MockModelClient struct {
	mock.Mock
}

// Complete mocks one chat completion.
func (m *MockModelClient) Complete(ctx context.Context, model string, messages []llm.Message) (string, error) {
	args := m.Called(ctx, model, messages)
	return args.String(0), args.Error(1)
}

// CompleteWithTools mocks one chat completion with tools attached.
func (m *MockModelClient) CompleteWithTools(ctx context.Context, model string, messages []llm.Message, tools []llm.Tool) (*llm.ToolResult, error) {
	args := m.Called(ctx, model, messages, tools)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ToolResult), args.Error(1)
}

// MockBroker is a mock implementation of broker.Broker for testing.
type MockBroker struct {
	mock.Mock
}

// GetConnection mocks the connection lookup.
func (m *MockBroker) GetConnection(ctx context.Context, entityID, appName string) (*broker.Connection, error) {
	args := m.Called(ctx, entityID, appName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broker.Connection), args.Error(1)
}

// ListConnections mocks the connection listing.
func (m *MockBroker) ListConnections(ctx context.Context, entityID string) ([]broker.Connection, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broker.Connection), args.Error(1)
}

// InitiateConnection mocks the authorization round-trip start.
func (m *MockBroker) InitiateConnection(ctx context.Context, entityID, appName string) (string, error) {
	args := m.Called(ctx, entityID, appName)
	return args.String(0), args.Error(1)
}

// GetActions mocks the action-definition fetch.
func (m *MockBroker) GetActions(ctx context.Context, actions []string) ([]broker.ActionDefinition, error) {
	args := m.Called(ctx, actions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broker.ActionDefinition), args.Error(1)
}

// ExecuteAction mocks one action execution.
func (m *MockBroker) ExecuteAction(ctx context.Context, entityID, action string, input json.RawMessage) (*broker.InvocationResult, error) {
	args := m.Called(ctx, entityID, action, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*broker.InvocationResult), args.Error(1)
}

// NewMockBroker creates a mock broker with default behaviors: every catalog
// service connected and every action returning an empty result.
func NewMockBroker(t *testing.T) *MockBroker {
	t.Helper()
	m := new(MockBroker)

	m.On("GetConnection", mock.Anything, mock.Anything, mock.Anything).
		Return(&broker.Connection{ID: "conn-1", Status: "ACTIVE"}, nil).
		Maybe()
	m.On("GetActions", mock.Anything, mock.Anything).
		Return([]broker.ActionDefinition{}, nil).
		Maybe()
	m.On("ExecuteAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&broker.InvocationResult{Action: "noop", Response: json.RawMessage(`{}`)}, nil).
		Maybe()

	return m
}
