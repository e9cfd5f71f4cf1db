package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// translates batches with Anthropic Claude
type anthropicBatcher struct {
	client  anthropic.Client
	model   anthropic.Model
	options Options
}

func newAnthropicBatcher(apiKey string, opts Options) (*anthropicBatcher, error) {
	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &anthropicBatcher{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

func (b *anthropicBatcher) translateBatch(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
	message, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(b.options, items))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return parseResponseText(anthropicText(message))
}

func anthropicText(message *anthropic.Message) string {
	if message == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
