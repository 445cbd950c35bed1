package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/llm"
)

// Planner produces a free-text layout plan used only as additional prompt
// context for the generator. Planning is best-effort: any failure yields the
// default plan and never fails the request.
type Planner struct {
	llm    llm.Client
	model  string
	logger *zap.Logger
}

// NewPlanner creates a layout planner using the given model
func NewPlanner(client llm.Client, model string, logger *zap.Logger) *Planner {
	return &Planner{
		llm:    client,
		model:  model,
		logger: logger.Named("planner"),
	}
}

// Plan asks the model for a layout plan steered by the classifier's hint
func (p *Planner) Plan(ctx context.Context, prompt, layoutStrategy string) string {
	reply, err := p.llm.Complete(ctx, p.model, []llm.Message{
		llm.System(layoutPrompt),
		llm.Assistant("Here is the strategy for the layout: " + layoutStrategy + "."),
		llm.User(prompt),
	})
	if err != nil {
		p.logger.Warn("layout planning failed, using default plan", zap.Error(err))
		return DefaultLayoutPlan
	}

	plan := strings.TrimSpace(reply)
	if plan == "" {
		return DefaultLayoutPlan
	}
	return plan
}
