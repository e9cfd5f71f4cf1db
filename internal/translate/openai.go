package translate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-5-mini"

// translates batches with OpenAI Chat Completions
type openAIBatcher struct {
	client  openai.Client
	model   string
	options Options
}

func newOpenAIBatcher(apiKey string, opts Options) (*openAIBatcher, error) {
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &openAIBatcher{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

func (b *openAIBatcher) translateBatch(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(b.options, items)),
		},
		Model: b.model,
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	if completion == nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	return parseResponseText(completion.Choices[0].Message.Content)
}
