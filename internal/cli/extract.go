package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/vidsrt/internal/audio"
	ffmpegbin "github.com/mgpai22/vidsrt/internal/ffmpeg"
	"github.com/mgpai22/vidsrt/internal/video"
)

var extractCmd = &cobra.Command{
	Use:   "extract [media_file]",
	Short: "Extract the audio track from a video file",
	Long: `Extract the audio track from a video or audio file and save it as a
separate audio file. The defaults (16 kHz mono wav) match what the
speech models are given.

Supports multiple output formats: wav, mp3, aac, flac.

Examples:
  vidsrt extract video.mp4
  vidsrt extract video.mp4 -o audio.mp3 -f mp3 -b 128k
  vidsrt extract video.mov --format wav --sample-rate 44100 --channels 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := video.DefaultExtractAudioOptions()

	extractCmd.Flags().
		StringP("format", "f", defaults.Format, "Output audio format (wav, mp3, aac, flac)")
	extractCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz (e.g., 16000, 44100, 48000)")
	extractCmd.Flags().
		IntP("channels", "c", defaults.Channels, "Number of audio channels (1=mono, 2=stereo)")
	extractCmd.Flags().
		StringP("bitrate", "b", "", "Bitrate for lossy formats (e.g., 128k, 320k)")
	extractCmd.Flags().
		StringP("output", "o", "", "Output file path (defaults to the input name)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")
	outputPath, _ := cmd.Flags().GetString("output")

	format = strings.ToLower(format)
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("sample rate and channels must be positive")
	}

	if outputPath == "" {
		outputPath = strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + video.ExtensionFor(format)
	}
	if filepath.Clean(outputPath) == filepath.Clean(mediaPath) {
		return fmt.Errorf("output path must differ from the input: use --output")
	}

	if _, err := ffmpegbin.Ensure(); err != nil {
		return fmt.Errorf("failed to prepare ffmpeg: %w", err)
	}

	logger.Infow("Extracting audio",
		"input", mediaPath,
		"output", outputPath,
		"format", format,
		"sample_rate", sampleRate,
		"channels", channels,
	)

	opts := video.ExtractAudioOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}
	if err := video.ExtractAudio(cmd.Context(), mediaPath, outputPath, opts); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	out := cmd.OutOrStdout()
	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(out, "Audio extracted successfully: %s\n", absOutput)

	if duration, err := audio.GetDuration(outputPath); err != nil {
		logger.Warnw("Could not read output duration", "error", err)
	} else {
		fmt.Fprintf(out, "  Duration: %s\n", duration.String())
	}

	return nil
}
