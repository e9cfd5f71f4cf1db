// Package pipeline turns a media file into transcript segments: decode,
// split into chunks, transcribe, and optionally translate.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/logging"
	"github.com/mgpai22/vidsrt/internal/transcribe"
	"github.com/mgpai22/vidsrt/internal/translate"
)

// progress message shown to the user
type Stage string

const (
	StageLoading      Stage = "Loading and processing file..."
	StageModel        Stage = "Initializing model..."
	StageTranscribing Stage = "Transcribing content..."
	StageTranslating  Stage = "Translating captions..."
)

// decodes media into a mono waveform
type Decoder interface {
	Decode(ctx context.Context, mediaPath string) (*audio.Waveform, error)
}

// builds the transcriber lazily, after decoding succeeded
type TranscriberFactory func(ctx context.Context) (transcribe.Transcriber, error)

type Pipeline struct {
	Decoder        Decoder
	NewTranscriber TranscriberFactory
	// optional; nil keeps the transcript language
	Translator translate.Translator

	ChunkDuration time.Duration
	Concurrency   int
	TempDir       string

	Logger *logging.Logger
}

// Run processes mediaPath, reporting each stage to progress (may be nil).
// ProcessingTime on the result covers model setup, transcription and
// translation, not decoding.
func (p *Pipeline) Run(
	ctx context.Context,
	mediaPath string,
	progress func(Stage),
) (*transcribe.Result, error) {
	if progress == nil {
		progress = func(Stage) {}
	}
	log := p.Logger
	if log == nil {
		log = logging.NewNop()
	}

	progress(StageLoading)
	waveform, err := p.Decoder.Decode(ctx, mediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode media: %w", err)
	}
	log.Debugw("Decoded media",
		"path", mediaPath,
		"samples", len(waveform.Samples),
		"duration", waveform.Duration().String(),
	)

	chunkDir, err := os.MkdirTemp(p.TempDir, "vidsrt-chunks-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(chunkDir)

	chunks, err := audio.ChunkWaveform(ctx, waveform, p.ChunkDuration, chunkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to split audio: %w", err)
	}
	log.Debugw("Split audio", "chunks", len(chunks))

	progress(StageModel)
	start := time.Now()
	transcriber, err := p.NewTranscriber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}

	progress(StageTranscribing)
	result, err := transcribe.TranscribeChunks(ctx, transcriber, chunks, p.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	if p.Translator != nil && len(result.Segments) > 0 {
		progress(StageTranslating)
		translated, err := translate.Segments(ctx, p.Translator, result.Segments)
		if err != nil {
			return nil, fmt.Errorf("translation failed: %w", err)
		}
		result.Segments = translated
	}

	result.Duration = waveform.Duration()
	result.ProcessingTime = time.Since(start)

	log.Infow("Transcription complete",
		"segments", len(result.Segments),
		"language", result.Language,
		"processing_time", result.ProcessingTime.String(),
	)

	return result, nil
}
