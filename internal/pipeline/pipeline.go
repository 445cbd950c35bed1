package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/infrastructure/tracing"
	"github.com/0xhank/casper/internal/llm"
	"github.com/0xhank/casper/internal/shared/types"
)

const conversationPrompt = `You are a helpful assistant inside a UI generation tool. The user's message does not ask for a component, so reply conversationally. Keep the reply short and friendly.`

// Request is one generation request flowing through the pipeline
type Request struct {
	// EntityID identifies the caller toward the tool broker
	EntityID string
	// Prompt is the contextual prompt: chat history plus current component
	// code and state when present, ending with the user's message.
	Prompt string
}

// Pipeline sequences classification, concurrent layout planning and tool-data
// fetching, and generation. One request flows through at most four model
// calls; none are retried.
type Pipeline struct {
	classifier *Classifier
	planner    *Planner
	fetcher    *Fetcher
	generator  *Generator
	llm        llm.Client
	chatModel  string
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	logger     *zap.Logger
}

// New assembles a pipeline from its stages
func New(
	classifier *Classifier,
	planner *Planner,
	fetcher *Fetcher,
	generator *Generator,
	client llm.Client,
	chatModel string,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		planner:    planner,
		fetcher:    fetcher,
		generator:  generator,
		llm:        client,
		chatModel:  chatModel,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger.Named("pipeline"),
	}
}

// Run executes one generation request end to end. PROMPT classifications exit
// early with a conversational-only envelope. An authorization-required
// condition from the fetcher aborts before the generator is called.
func (p *Pipeline) Run(ctx context.Context, req Request) (*types.GeneratedContent, error) {
	span, ctx := p.tracer.StartSpan(ctx, "pipeline.run")
	defer span.Finish()

	classification := p.classify(ctx, req)
	span.SetTag("intent", string(classification.Type))

	if classification.Type == types.IntentPrompt {
		return p.converse(ctx, req)
	}

	toolData, layoutPlan, err := p.gather(ctx, req, classification)
	if err != nil {
		span.SetError(err)
		p.metrics.RecordGeneration(string(classification.Type), "auth_or_fetch_error")
		return nil, err
	}

	timer := monitoring.NewStageTimer(p.metrics, "generate")
	content, err := p.generator.Generate(ctx, classification.Type, req.Prompt, toolData, layoutPlan)
	timer.Stop()
	if err != nil {
		span.SetError(err)
		p.metrics.RecordGeneration(string(classification.Type), "error")
		return nil, err
	}

	p.metrics.RecordGeneration(string(classification.Type), "ok")
	p.logger.Info("generation completed",
		zap.String("intent", string(classification.Type)),
		zap.Bool("tool_data", toolData != nil),
	)
	return content, nil
}

func (p *Pipeline) classify(ctx context.Context, req Request) types.Classification {
	timer := monitoring.NewStageTimer(p.metrics, "classify")
	defer timer.Stop()
	return p.classifier.Classify(ctx, req.Prompt)
}

// gather runs layout planning and tool fetching concurrently; both depend
// only on the classification. The plan never fails; a fetch error aborts.
func (p *Pipeline) gather(ctx context.Context, req Request, classification types.Classification) (types.ToolData, string, error) {
	type fetchResult struct {
		data types.ToolData
		err  error
	}

	planCh := make(chan string, 1)
	fetchCh := make(chan fetchResult, 1)

	go func() {
		timer := monitoring.NewStageTimer(p.metrics, "plan_layout")
		defer timer.Stop()
		planCh <- p.planner.Plan(ctx, req.Prompt, classification.LayoutStrategy)
	}()

	go func() {
		timer := monitoring.NewStageTimer(p.metrics, "fetch_tools")
		defer timer.Stop()
		data, err := p.fetcher.Fetch(ctx, req.EntityID, req.Prompt, classification.ToolStrategy)
		fetchCh <- fetchResult{data: data, err: err}
	}()

	plan := <-planCh
	fetched := <-fetchCh
	if fetched.err != nil {
		return nil, "", fetched.err
	}
	return fetched.data, plan, nil
}

// converse handles the PROMPT early exit: one model call for the reply text,
// no code fields.
func (p *Pipeline) converse(ctx context.Context, req Request) (*types.GeneratedContent, error) {
	timer := monitoring.NewStageTimer(p.metrics, "converse")
	defer timer.Stop()

	reply, err := p.llm.Complete(ctx, p.chatModel, []llm.Message{
		llm.System(conversationPrompt),
		llm.User(req.Prompt),
	})
	if err != nil {
		p.metrics.RecordGeneration(string(types.IntentPrompt), "error")
		return nil, err
	}

	p.metrics.RecordGeneration(string(types.IntentPrompt), "ok")
	return &types.GeneratedContent{
		Description:  reply,
		InitialState: types.ComponentState{},
		Type:         types.IntentPrompt,
	}, nil
}
