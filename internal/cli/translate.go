package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/vidsrt/internal/config"
	"github.com/mgpai22/vidsrt/internal/subtitle"
	"github.com/mgpai22/vidsrt/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitle_file]",
	Short: "Translate an SRT file to another language using AI",
	Long: `Translate an existing SRT file to another language using an LLM.
Timings are kept, only the caption text is translated.

The --overlay flag creates bilingual captions with the translated text
first, followed by the original text on the next line.

Examples:
  vidsrt translate video.srt --translate-to japanese
  vidsrt translate video.srt -t ja --overlay --translate-provider openai
  vidsrt translate video.srt -t spanish --format vtt -o video.es.vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("translate-to", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		String("translate-provider", string(translate.ProviderGemini), "Translation provider (openai, gemini, anthropic)")
	translateCmd.Flags().
		String("translate-model", "", "Translation model (provider default when empty)")
	translateCmd.Flags().
		StringP("translate-api-key", "k", "", "API key (or set GEMINI_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	translateCmd.Flags().
		StringP("input-language", "l", "", "Language of the input captions (detected when empty)")
	translateCmd.Flags().
		String("prompt", "", "Extra instructions for the translator")
	translateCmd.Flags().
		Int("concurrency", translate.DefaultConcurrency, "Number of parallel translation workers")
	translateCmd.Flags().
		Int("batch-size", translate.DefaultBatchSize, "Number of captions per API request")
	translateCmd.Flags().
		Bool("overlay", false, "Keep the original text under the translation (bilingual captions)")
	translateCmd.Flags().
		StringP("format", "f", "srt", "Output subtitle format (srt, vtt)")
	translateCmd.Flags().
		StringP("output", "o", "", "Output file path")

	_ = translateCmd.MarkFlagRequired("translate-to")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	subtitlePath := args[0]
	ctx := cmd.Context()

	if ext := strings.ToLower(filepath.Ext(subtitlePath)); ext != ".srt" {
		return fmt.Errorf("unsupported subtitle format %q: use .srt", ext)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the flag default is shadowed by the empty config default
	if cfg.TranslateProvider == "" {
		cfg.TranslateProvider = string(translate.ProviderGemini)
		cfg.TranslateAPIKey = config.ResolveAPIKey(cfg.TranslateProvider, cfg.TranslateAPIKey)
	}

	inputLang, _ := cmd.Flags().GetString("input-language")
	if inputLang != "" && strings.EqualFold(strings.TrimSpace(inputLang), strings.TrimSpace(cfg.TranslateTo)) {
		return fmt.Errorf("input language %q and target language %q cannot be the same", inputLang, cfg.TranslateTo)
	}

	if _, err := cfg.RequireTranslator(); err != nil {
		return err
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	overlay, _ := cmd.Flags().GetBool("overlay")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	format, err := subtitle.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = translatedOutputPath(subtitlePath, cfg.TranslateTo, overlay, format)
	}

	f, err := os.Open(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to open subtitle file: %w", err)
	}
	segments, err := subtitle.ParseSRT(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	if len(segments) == 0 {
		return fmt.Errorf("subtitle file contains no entries")
	}

	provider, err := translate.ParseProvider(cfg.TranslateProvider)
	if err != nil {
		return err
	}

	logger.Infow("Starting subtitle translation",
		"input", subtitlePath,
		"output", outputPath,
		"entries", len(segments),
		"provider", provider,
		"target_language", cfg.TranslateTo,
		"overlay", overlay,
	)

	translator, err := translate.Factory(ctx, provider, cfg.TranslateAPIKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: cfg.TranslateTo,
		Model:          cfg.TranslateModel,
		Prompt:         cfg.Prompt,
		BatchSize:      batchSize,
		Concurrency:    cfg.Concurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	translated, err := translate.Segments(ctx, translator, segments)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	if overlay {
		translated = overlaySegments(translated, segments)
	}

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return fmt.Errorf("failed to create subtitle writer: %w", err)
	}
	if err := writer.Write(translated, outputPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(out, "Subtitles translated successfully: %s\n", absOutput)
	fmt.Fprintf(out, "  Entries: %d\n", len(translated))
	fmt.Fprintf(out, "  Target language: %s\n", cfg.TranslateTo)
	if overlay {
		fmt.Fprintf(out, "  Mode: bilingual overlay\n")
	}

	return nil
}

// overlaySegments puts the original text under each translation
func overlaySegments(translated, original []subtitle.Segment) []subtitle.Segment {
	out := make([]subtitle.Segment, len(translated))
	for i, seg := range translated {
		out[i] = seg
		orig := strings.TrimSpace(original[i].Text)
		if orig != "" && orig != strings.TrimSpace(seg.Text) {
			out[i].Text = strings.TrimSpace(seg.Text) + "\n" + orig
		}
	}
	return out
}

// e.g. talk.srt -> talk.ja.srt, talk.ja.overlay.srt
func translatedOutputPath(path, lang string, overlay bool, format subtitle.Format) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	lang = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), " ", "-"))
	if overlay {
		return fmt.Sprintf("%s.%s.overlay%s", base, lang, subtitle.ExtensionForFormat(format))
	}
	return fmt.Sprintf("%s.%s%s", base, lang, subtitle.ExtensionForFormat(format))
}
