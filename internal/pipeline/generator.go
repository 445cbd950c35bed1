package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/llm"
	"github.com/0xhank/casper/internal/shared/types"
)

// ErrInvalidModelResponse is returned when the model's reply cannot be
// recovered into a valid generation envelope. Never retried.
var ErrInvalidModelResponse = errors.New("invalid AI response format")

// Generator turns a classified prompt plus gathered context into a validated
// GeneratedContent envelope with exactly one model call.
type Generator struct {
	llm    llm.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates a generator using the given model
func NewGenerator(client llm.Client, model string, logger *zap.Logger) *Generator {
	return &Generator{
		llm:    client,
		model:  model,
		logger: logger.Named("generator"),
	}
}

// Generate runs the generation call and validates the returned envelope. The
// classified intent is attached as the envelope's Type on success.
func (g *Generator) Generate(ctx context.Context, intent types.Intent, prompt string, toolData types.ToolData, layoutPlan string) (*types.GeneratedContent, error) {
	messages := []llm.Message{
		llm.System(systemPrompt(string(intent), time.Now())),
		llm.System(contextMessage(toolData, layoutPlan)),
		llm.User(prompt),
	}

	reply, err := g.llm.Complete(ctx, g.model, messages)
	if err != nil {
		return nil, err
	}

	content, err := g.parseEnvelope(reply)
	if err != nil {
		return nil, err
	}

	content.Type = intent
	return content, nil
}

// contextMessage injects the layout plan and tool data as an additional
// system message.
func contextMessage(toolData types.ToolData, layoutPlan string) string {
	var b strings.Builder
	b.WriteString("Layout plan:\n")
	b.WriteString(layoutPlan)
	if len(toolData) > 0 {
		b.WriteString("\n\nTool data (provide this to the component through its initial state):\n")
		b.Write(toolData)
	} else {
		b.WriteString("\n\nNo tool data is available for this request.")
	}
	return b.String()
}

// parseEnvelope cleans, parses, and validates a raw model reply
func (g *Generator) parseEnvelope(raw string) (*types.GeneratedContent, error) {
	cleaned := cleanModelReply(raw)
	if !strings.HasPrefix(cleaned, "{") {
		g.logger.Error("model reply is not a JSON object",
			zap.String("cleaned", truncate(cleaned, 512)),
			zap.String("raw", truncate(raw, 512)),
		)
		return nil, ErrInvalidModelResponse
	}

	var content types.GeneratedContent
	if err := sonic.UnmarshalString(cleaned, &content); err != nil {
		g.logger.Error("failed to parse model reply",
			zap.String("cleaned", truncate(cleaned, 512)),
			zap.String("raw", truncate(raw, 512)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelResponse, err)
	}

	if err := validateEnvelope(&content); err != nil {
		g.logger.Error("model reply failed validation",
			zap.String("cleaned", truncate(cleaned, 512)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelResponse, err)
	}

	if content.HTML != "" {
		if dupes := duplicateIDs(content.HTML); len(dupes) > 0 {
			g.logger.Warn("generated markup reuses element ids",
				zap.Strings("ids", dupes),
			)
		}
	}
	return &content, nil
}

func validateEnvelope(content *types.GeneratedContent) error {
	if content.Spec == "" {
		return errors.New("missing spec")
	}
	if content.Description == "" {
		return errors.New("missing description")
	}
	if !content.HasCode() {
		return errors.New("missing html or jsx")
	}
	if content.InitialState == nil {
		content.InitialState = types.ComponentState{}
	}
	return nil
}

// duplicateIDs inspects generated markup and returns any element ids used
// more than once.
func duplicateIDs(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	seen := make(map[string]int)
	doc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		if id, ok := sel.Attr("id"); ok && id != "" {
			seen[id]++
		}
	})

	var dupes []string
	for id, count := range seen {
		if count > 1 {
			dupes = append(dupes, id)
		}
	}
	return dupes
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
