package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/vidsrt/internal/ffmpeg"
)

// holds options for audio extraction
type ExtractAudioOptions struct {
	Format     string // wav, mp3, aac, flac
	SampleRate int
	Channels   int
	Bitrate    string // lossy formats only, e.g. "128k"
}

// speech friendly defaults: 16 kHz mono PCM
func DefaultExtractAudioOptions() ExtractAudioOptions {
	return ExtractAudioOptions{
		Format:     "wav",
		SampleRate: 16000,
		Channels:   1,
	}
}

// extracts the audio track of a media file into outputPath
func ExtractAudio(
	ctx context.Context,
	mediaPath, outputPath string,
	opts ExtractAudioOptions,
) error {
	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("media file not found: %s", mediaPath)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs, err := extractKwArgs(opts)
	if err != nil {
		return err
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	err = ffmpeg.Input(mediaPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg extraction failed: %w", err)
	}

	return nil
}

func extractKwArgs(opts ExtractAudioOptions) (ffmpeg.KwArgs, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}

	kwargs := ffmpeg.KwArgs{
		"vn": "",
		"ar": opts.SampleRate,
		"ac": opts.Channels,
	}

	switch strings.ToLower(opts.Format) {
	case "mp3":
		kwargs["acodec"] = "libmp3lame"
	case "aac":
		kwargs["acodec"] = "aac"
	case "flac":
		kwargs["acodec"] = "flac"
	case "", "wav":
		kwargs["acodec"] = "pcm_s16le"
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", opts.Format)
	}

	if opts.Bitrate != "" && kwargs["acodec"] != "pcm_s16le" && kwargs["acodec"] != "flac" {
		kwargs["b:a"] = opts.Bitrate
	}

	return kwargs, nil
}

// output extension for the requested format
func ExtensionFor(format string) string {
	switch strings.ToLower(format) {
	case "mp3", "aac", "flac":
		return "." + strings.ToLower(format)
	default:
		return ".wav"
	}
}
