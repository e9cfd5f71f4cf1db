package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mgpai22/vidsrt/internal/subtitle"
)

const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 3
)

// single text item to translate
type TranslationItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// translated text item
type TranslationResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// interface for text translation
type Translator interface {
	Translate(ctx context.Context, items []TranslationItem) ([]TranslationResult, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

type Options struct {
	InputLanguage  string
	TargetLanguage string
	Model          string
	Prompt         string
	BatchSize      int // items per API request
	Concurrency    int // requests in flight
}

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported translation provider %q: use openai, gemini or anthropic", s)
	}
}

// creates a batching Translator for the provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (*BatchTranslator, error) {
	if opts.TargetLanguage == "" {
		return nil, fmt.Errorf("target language is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	var (
		b   batcher
		err error
	)
	switch provider {
	case ProviderGemini:
		b, err = newGeminiBatcher(ctx, apiKey, opts)
	case ProviderOpenAI:
		b, err = newOpenAIBatcher(apiKey, opts)
	case ProviderAnthropic:
		b, err = newAnthropicBatcher(apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	return NewBatchTranslator(b, opts), nil
}

// Segments translates the text of every segment, keeping timings.
// Blank segments are passed through untouched.
func Segments(ctx context.Context, t Translator, segments []subtitle.Segment) ([]subtitle.Segment, error) {
	items := make([]TranslationItem, 0, len(segments))
	for i, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		items = append(items, TranslationItem{Index: i, Text: seg.Text})
	}

	out := make([]subtitle.Segment, len(segments))
	copy(out, segments)

	if len(items) == 0 {
		return out, nil
	}

	results, err := t.Translate(ctx, items)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Index < 0 || r.Index >= len(out) {
			return nil, fmt.Errorf("translation returned unknown index %d", r.Index)
		}
		out[r.Index].Text = strings.TrimSpace(r.Text)
	}

	return out, nil
}

// BuildPrompt creates the translation prompt for LLM providers
func BuildPrompt(opts Options, items []TranslationItem) string {
	var sb strings.Builder

	if opts.InputLanguage != "" {
		fmt.Fprintf(&sb, "Translate the following %s subtitle texts to %s.\n\n", opts.InputLanguage, opts.TargetLanguage)
	} else {
		fmt.Fprintf(&sb, "Translate the following subtitle texts to %s.\n\n", opts.TargetLanguage)
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text content, preserving the meaning.\n")
	sb.WriteString("2. Keep line breaks inside a text in the same positions.\n")
	sb.WriteString("3. Return ONLY a JSON array with the same structure.\n")
	sb.WriteString("4. Each object must have 'index' and 'text' fields.\n")
	sb.WriteString("5. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("6. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		fmt.Fprintf(&sb, "Additional instructions: %s\n\n", opts.Prompt)
	}

	sb.WriteString("Input JSON:\n")

	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)

	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}
