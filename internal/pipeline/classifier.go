package pipeline

import (
	"context"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/llm"
	"github.com/0xhank/casper/internal/shared/types"
)

// Classifier resolves a user prompt to exactly one intent category plus
// strategy hints. It never fails: a malformed model reply degrades to a
// best-effort classification instead of an error.
type Classifier struct {
	llm    llm.Client
	model  string
	logger *zap.Logger
}

// NewClassifier creates a classifier using the given model
func NewClassifier(client llm.Client, model string, logger *zap.Logger) *Classifier {
	return &Classifier{
		llm:    client,
		model:  model,
		logger: logger.Named("classifier"),
	}
}

// Classify runs one model call and returns a Classification. The prompt is
// the contextual prompt: chat history plus current component code and state
// when present. Unknown or unparseable replies default to PROMPT.
func (c *Classifier) Classify(ctx context.Context, prompt string) types.Classification {
	reply, err := c.llm.Complete(ctx, c.model, []llm.Message{
		llm.System(classifierPrompt),
		llm.User(prompt),
	})
	if err != nil {
		c.logger.Warn("classifier call failed, defaulting to PROMPT", zap.Error(err))
		return defaultClassification(types.IntentPrompt)
	}

	var classification types.Classification
	if err := sonic.UnmarshalString(stripFences(reply), &classification); err != nil {
		// Treat the raw reply as the type value itself
		c.logger.Warn("classifier reply was not JSON",
			zap.String("reply", reply),
			zap.Error(err),
		)
		return defaultClassification(normalizeIntent(reply))
	}

	classification.Type = normalizeIntent(string(classification.Type))
	if classification.ToolStrategy == "" {
		classification.ToolStrategy = defaultToolStrategy
	}
	if classification.LayoutStrategy == "" {
		classification.LayoutStrategy = defaultLayoutStrategy
	}
	return classification
}

func defaultClassification(intent types.Intent) types.Classification {
	return types.Classification{
		Type:           intent,
		ToolStrategy:   defaultToolStrategy,
		LayoutStrategy: defaultLayoutStrategy,
	}
}

// normalizeIntent maps arbitrary model output to one of the four categories,
// defaulting to PROMPT when the value is not recognizable.
func normalizeIntent(raw string) types.Intent {
	intent := types.Intent(strings.ToUpper(strings.TrimSpace(raw)))
	if intent.Valid() {
		return intent
	}
	return types.IntentPrompt
}
