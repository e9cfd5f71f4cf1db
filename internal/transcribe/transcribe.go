package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mgpai22/vidsrt/internal/subtitle"
)

// transcription result, owned by the caller
type Result struct {
	Segments       []subtitle.Segment
	Language       string
	Duration       time.Duration
	ProcessingTime time.Duration
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderGemini  Provider = "gemini"
	ProviderWhisper Provider = "whisper"
)

// what the model is asked to produce
type Task string

const (
	// text in the spoken language
	TaskTranscribe Task = "transcribe"
	// text translated to English
	TaskTranslate Task = "translate"
)

const DefaultLanguage = "en"

// transcription options
type Options struct {
	Language string // spoken language, ISO-639-1
	Task     Task
	Model    string
	Prompt   string
	BaseURL  string // API endpoint override; whisper.cpp server address
}

// fills unset options with defaults
func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Task == "" {
		o.Task = TaskTranscribe
	}
	return o
}

func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderGemini, ProviderWhisper:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported provider %q: use openai, gemini or whisper", s)
	}
}

func ParseTask(s string) (Task, error) {
	switch t := Task(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TaskTranscribe, nil
	case TaskTranscribe, TaskTranslate:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported task %q: use transcribe or translate", s)
	}
}

// reports whether the provider needs an API key
func (p Provider) RequiresAPIKey() bool {
	return p != ProviderWhisper
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	opts = opts.withDefaults()

	switch provider {
	case ProviderOpenAI:
		return NewOpenAITranscriber(apiKey, opts)
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderWhisper:
		return NewWhisperCppTranscriber(opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
