package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type sampleRange struct {
	start, end int
}

// splits the waveform into WAV files of at most chunkDuration each.
// A zero or negative chunkDuration yields a single chunk.
func ChunkWaveform(
	ctx context.Context,
	w *Waveform,
	chunkDuration time.Duration,
	outputDir string,
) ([]ChunkInfo, error) {
	if w == nil || len(w.Samples) == 0 {
		return nil, fmt.Errorf("waveform is empty")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	perChunk := len(w.Samples)
	if chunkDuration > 0 {
		perChunk = int(chunkDuration.Seconds() * float64(w.SampleRate))
	}

	ranges := planChunks(len(w.Samples), perChunk)
	chunks := make([]ChunkInfo, 0, len(ranges))

	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			_ = CleanupChunks(chunks)
			return nil, err
		}

		path := filepath.Join(outputDir, fmt.Sprintf("chunk_%03d.wav", i))
		if err := WriteWAV(path, w.Samples[r.start:r.end], w.SampleRate); err != nil {
			_ = CleanupChunks(chunks)
			return nil, fmt.Errorf("failed to create chunk %d: %w", i, err)
		}

		chunks = append(chunks, ChunkInfo{
			Path:      path,
			Index:     i,
			StartTime: samplesToDuration(r.start, w.SampleRate),
			EndTime:   samplesToDuration(r.end, w.SampleRate),
		})
	}

	return chunks, nil
}

func planChunks(total, perChunk int) []sampleRange {
	if perChunk <= 0 || perChunk > total {
		perChunk = total
	}
	var ranges []sampleRange
	for start := 0; start < total; start += perChunk {
		end := min(start+perChunk, total)
		ranges = append(ranges, sampleRange{start: start, end: end})
	}
	return ranges
}

func samplesToDuration(n, sampleRate int) time.Duration {
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
