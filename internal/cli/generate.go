package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/caption"
	ffmpegbin "github.com/mgpai22/vidsrt/internal/ffmpeg"
	"github.com/mgpai22/vidsrt/internal/pipeline"
	"github.com/mgpai22/vidsrt/internal/subtitle"
)

var generateCmd = &cobra.Command{
	Use:   "generate [media_file]",
	Short: "Generate captions for an audio or video file",
	Long: `Generate captions for the specified audio or video file.

The audio track is decoded to 16 kHz mono, split into chunks and
transcribed in parallel. Each caption line is printed as it is revealed,
then the captions are written next to the input as an .srt file.

Examples:
  vidsrt generate video.mp4
  vidsrt generate talk.mp3 --provider gemini --format vtt
  vidsrt generate lecture.mov --language es --task translate
  vidsrt generate video.mp4 --provider whisper --whisper-url http://127.0.0.1:8080
  vidsrt generate video.mp4 --translate-to japanese --translate-provider anthropic`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	addTranscriptionFlags(generateCmd.Flags())
	addTranslationFlags(generateCmd.Flags())

	generateCmd.Flags().
		StringP("format", "f", "srt", "Output subtitle format (srt, vtt)")
	generateCmd.Flags().
		StringP("output", "o", "", "Output file path (defaults to the input name)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireTranscriber(); err != nil {
		return err
	}

	format, err := subtitle.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = defaultOutputPath(mediaPath, format)
	}

	if _, err := ffmpegbin.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare ffmpeg: %w", err)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	logger.Infow("Starting caption generation",
		"input", mediaPath,
		"output", outputPath,
		"provider", cfg.Provider,
		"language", cfg.Language,
		"task", cfg.Task,
		"chunk_duration", cfg.ChunkDuration.String(),
		"concurrency", cfg.Concurrency,
	)

	out := cmd.OutOrStdout()
	result, err := p.Run(ctx, mediaPath, func(stage pipeline.Stage) {
		fmt.Fprintln(out, stage)
	})
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", mediaPath, err)
	}

	fmt.Fprintf(out, "Processing complete! (%.2fs)\n\n", result.ProcessingTime.Seconds())
	if err := printCaptions(ctx, out, result.Segments, cfg.RevealPause); err != nil {
		return err
	}

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return fmt.Errorf("failed to create subtitle writer: %w", err)
	}
	if err := writer.Write(result.Segments, outputPath); err != nil {
		return err
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(out, "Subtitles generated successfully: %s\n", absOutput)
	fmt.Fprintf(out, "  Segments: %d\n", len(result.Segments))
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.String())
	if result.Language != "" {
		fmt.Fprintf(out, "  Language: %s\n", result.Language)
	}

	return nil
}

// printCaptions reveals one caption line at a time, blank line between
func printCaptions(ctx context.Context, out io.Writer, segments []subtitle.Segment, pause time.Duration) error {
	if len(segments) == 0 {
		fmt.Fprintln(out, "No speech detected.")
		return nil
	}

	fmt.Fprintln(out, "Generated Captions")
	for i, line := range caption.Reveal(ctx, segments, pause) {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	return ctx.Err()
}

func defaultOutputPath(mediaPath string, format subtitle.Format) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + subtitle.ExtensionForFormat(format)
}
