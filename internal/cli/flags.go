package cli

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/transcribe"
	"github.com/mgpai22/vidsrt/internal/translate"
)

// flags shared by every command that runs a transcription
func addTranscriptionFlags(fs *pflag.FlagSet) {
	fs.StringP("provider", "p", config.DefaultProvider,
		"Transcription provider (openai, gemini, whisper)")
	fs.StringP("api-key", "k", "",
		"API key for the provider (or set OPENAI_API_KEY / GEMINI_API_KEY)")
	fs.StringP("model", "m", "",
		"Model name (provider default when empty)")
	fs.StringP("language", "l", config.DefaultLanguage,
		"Spoken language code (e.g., en, es, fr)")
	fs.String("task", config.DefaultTask,
		"transcribe, or translate speech to English")
	fs.String("prompt", "",
		"Context prompt for the model (names, vocabulary)")
	fs.String("whisper-url", "",
		"whisper.cpp server address, or an OpenAI compatible base URL")
	fs.DurationP("chunk-duration", "d", config.DefaultChunkDuration,
		"Length of the audio chunks sent to the model")
	fs.Int("concurrency", config.DefaultConcurrency,
		"Number of parallel transcription workers")
	fs.Duration("reveal-pause", config.DefaultRevealPause,
		"Pause between revealed caption lines")
	fs.String("temp-dir", "",
		"Directory for temporary files (system default when empty)")
}

// flags for the optional LLM translation of captions
func addTranslationFlags(fs *pflag.FlagSet) {
	fs.String("translate-to", "",
		"Translate captions to this language (e.g., spanish, ja)")
	fs.String("translate-provider", "",
		"Translation provider (openai, gemini, anthropic)")
	fs.String("translate-model", "",
		"Translation model (provider default when empty)")
	fs.String("translate-api-key", "",
		"API key for the translation provider")
}

// newPipeline wires the configured decoder, model and translator
func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	provider, err := transcribe.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	task, err := transcribe.ParseTask(cfg.Task)
	if err != nil {
		return nil, err
	}

	opts := transcribe.Options{
		Language: cfg.Language,
		Task:     task,
		Model:    cfg.Model,
		Prompt:   cfg.Prompt,
		BaseURL:  cfg.WhisperURL,
	}

	p := &pipeline.Pipeline{
		Decoder: audio.NewDecoder(),
		NewTranscriber: func(ctx context.Context) (transcribe.Transcriber, error) {
			return transcribe.Factory(ctx, provider, cfg.APIKey, opts)
		},
		ChunkDuration: cfg.ChunkDuration,
		Concurrency:   cfg.Concurrency,
		TempDir:       cfg.TempDir,
		Logger:        logger.Named("pipeline"),
	}

	translator, err := newTranslator(ctx, cfg, task)
	if err != nil {
		return nil, err
	}
	if translator != nil {
		p.Translator = translator
	}

	return p, nil
}

// newTranslator returns nil when --translate-to is unset
func newTranslator(ctx context.Context, cfg *config.Config, task transcribe.Task) (*translate.BatchTranslator, error) {
	ok, err := cfg.RequireTranslator()
	if err != nil || !ok {
		return nil, err
	}

	provider, err := translate.ParseProvider(cfg.TranslateProvider)
	if err != nil {
		return nil, err
	}

	inputLang := cfg.Language
	if task == transcribe.TaskTranslate {
		inputLang = "en"
	}

	t, err := translate.Factory(ctx, provider, cfg.TranslateAPIKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: cfg.TranslateTo,
		Model:          cfg.TranslateModel,
		Concurrency:    cfg.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}
	return t, nil
}

var providerLabels = map[string]string{
	"openai":  "OpenAI Whisper",
	"gemini":  "Google Gemini",
	"whisper": "whisper.cpp",
}

// modelLabel names the model for display, e.g. "OpenAI Whisper (whisper-1)"
func modelLabel(provider, model string) string {
	label, ok := providerLabels[provider]
	if !ok {
		label = provider
	}
	if model != "" {
		label += " (" + model + ")"
	}
	return label
}
