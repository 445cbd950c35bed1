package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/infrastructure/resilience"
)

// ErrEmptyResponse is returned when the provider responds with no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Message is one turn of a chat-completion conversation
type Message struct {
	Role    string // "system", "assistant", "user", "tool"
	Content string
}

// System builds a system message
func System(content string) Message {
	return Message{Role: openai.ChatMessageRoleSystem, Content: content}
}

// Assistant builds an assistant message
func Assistant(content string) Message {
	return Message{Role: openai.ChatMessageRoleAssistant, Content: content}
}

// User builds a user message
func User(content string) Message {
	return Message{Role: openai.ChatMessageRoleUser, Content: content}
}

// ToolCall is a tool invocation the model requested
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded arguments
}

// ToolResult carries text and any tool calls from one completion
type ToolResult struct {
	Content   string
	ToolCalls []ToolCall
}

// Tool describes a callable function offered to the model
type Tool struct {
	Name        string
	Description string
	Parameters  interface{} // JSON schema
}

// Client defines the model-provider operations the pipeline depends on.
// Implementations must not retry: every failure surfaces once.
type Client interface {
	// Complete runs one chat completion and returns the reply text.
	Complete(ctx context.Context, model string, messages []Message) (string, error)
	// CompleteWithTools runs one chat completion with tools attached; the
	// model may request zero or more invocations.
	CompleteWithTools(ctx context.Context, model string, messages []Message, tools []Tool) (*ToolResult, error)
}

// OpenAI implements Client against an OpenAI-compatible chat-completions API
type OpenAI struct {
	client  *openai.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// Config defines client construction options
type Config struct {
	APIKey  string
	BaseURL string // optional override for compatible providers
}

// NewOpenAI creates a model-provider client
func NewOpenAI(cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	breaker := resilience.New("model-provider", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		breaker: breaker,
		metrics: metrics,
		logger:  logger.Named("llm"),
	}
}

// Complete runs one chat completion and returns the reply text
func (o *OpenAI) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	result, err := o.CompleteWithTools(ctx, model, messages, nil)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// CompleteWithTools runs one chat completion with optional tools attached
func (o *OpenAI) CompleteWithTools(ctx context.Context, model string, messages []Message, tools []Tool) (*ToolResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
		req.ToolChoice = "auto"
	}

	start := time.Now()
	resp, err := o.breaker.Execute(func() (interface{}, error) {
		return o.client.CreateChatCompletion(ctx, req)
	})
	duration := time.Since(start)

	if err != nil {
		o.metrics.RecordModelCall(model, "error", duration)
		o.logger.Error("model call failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	completion := resp.(openai.ChatCompletionResponse)
	if len(completion.Choices) == 0 {
		o.metrics.RecordModelCall(model, "empty", duration)
		return nil, ErrEmptyResponse
	}

	o.metrics.RecordModelCall(model, "ok", duration)

	msg := completion.Choices[0].Message
	result := &ToolResult{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	o.logger.Debug("model call completed",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("tool_calls", len(result.ToolCalls)),
	)

	return result, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

func convertTools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
