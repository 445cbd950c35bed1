package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/broker"
	"github.com/0xhank/casper/internal/llm"
	"github.com/0xhank/casper/internal/shared/types"
)

// Fetcher retrieves third-party data relevant to a prompt in two phases:
// category selection, then a tool-call round executed through the broker.
// An empty selection short-circuits to nil without touching the broker.
type Fetcher struct {
	llm     llm.Client
	broker  broker.Broker
	catalog broker.Catalog
	model   string
	logger  *zap.Logger
}

// NewFetcher creates a tool-data fetcher using the given model
func NewFetcher(client llm.Client, b broker.Broker, catalog broker.Catalog, model string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		llm:     client,
		broker:  b,
		catalog: catalog,
		model:   model,
		logger:  logger.Named("fetcher"),
	}
}

// Fetch returns an opaque JSON blob of retrieved tool data, or nil when no
// tools apply. A missing broker connection surfaces as AuthRequiredError
// carrying the authorization redirect URL; no data is fetched in that case.
func (f *Fetcher) Fetch(ctx context.Context, entityID, prompt, toolStrategy string) (types.ToolData, error) {
	categories, err := f.selectCategories(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}

	if err := f.checkConnections(ctx, entityID, categories); err != nil {
		return nil, err
	}

	actions, err := f.broker.GetActions(ctx, f.catalog.ActionsFor(categories))
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}

	tools := make([]llm.Tool, 0, len(actions))
	for _, action := range actions {
		tools = append(tools, llm.Tool{
			Name:        action.Name,
			Description: action.Description,
			Parameters:  action.InputSchema,
		})
	}

	result, err := f.llm.CompleteWithTools(ctx, f.model, []llm.Message{
		llm.System(toolUsagePrompt(time.Now())),
		llm.Assistant("Here is the strategy for tool usage: " + toolStrategy + "."),
		llm.User(prompt),
	}, tools)
	if err != nil {
		return nil, err
	}
	if len(result.ToolCalls) == 0 {
		f.logger.Debug("model requested no tool invocations")
		return nil, nil
	}

	invocations := make([]*broker.InvocationResult, 0, len(result.ToolCalls))
	for _, call := range result.ToolCalls {
		invocation, err := f.broker.ExecuteAction(ctx, entityID, call.Name, json.RawMessage(call.Arguments))
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, invocation)
	}

	data, err := sonic.Marshal(invocations)
	if err != nil {
		return nil, err
	}
	return types.ToolData(data), nil
}

// selectCategories runs the phase-one model call and filters the reply to
// known catalog categories. Any parse failure means no tools.
func (f *Fetcher) selectCategories(ctx context.Context, prompt string) ([]string, error) {
	reply, err := f.llm.Complete(ctx, f.model, []llm.Message{
		llm.System(toolSelectionPrompt(f.catalog.Categories())),
		llm.User(prompt),
	})
	if err != nil {
		return nil, err
	}

	var selected []string
	if err := sonic.UnmarshalString(stripFences(reply), &selected); err != nil {
		f.logger.Warn("tool selection reply was not a JSON array",
			zap.String("reply", reply),
		)
		return nil, nil
	}

	known := make([]string, 0, len(selected))
	for _, name := range selected {
		if _, ok := f.catalog.Lookup(name); ok {
			known = append(known, name)
		}
	}
	return known, nil
}

// checkConnections verifies the entity holds an active connection for every
// app the selected categories need, initiating authorization for the first
// missing one.
func (f *Fetcher) checkConnections(ctx context.Context, entityID string, categories []string) error {
	for _, app := range f.catalog.AppsFor(categories) {
		conn, err := f.broker.GetConnection(ctx, entityID, app)
		if err == nil && conn.Active() {
			continue
		}
		if err != nil && !errors.Is(err, broker.ErrNotConnected) {
			return err
		}

		redirect, err := f.broker.InitiateConnection(ctx, entityID, app)
		if err != nil {
			return err
		}
		return &broker.AuthRequiredError{App: app, RedirectURL: redirect}
	}
	return nil
}
