package transcribe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mgpai22/vidsrt/internal/audio"
	"github.com/mgpai22/vidsrt/internal/subtitle"
)

const DefaultConcurrency = 3

// holds the result of transcribing a chunk
type chunkResult struct {
	Index  int
	Result *Result
	Error  error
}

// TranscribeChunks runs t over every chunk with at most concurrency
// requests in flight. Segment times are shifted by the chunk start so the
// merged result is relative to the start of the whole media file. The
// first failure cancels the remaining chunks.
func TranscribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []audio.ChunkInfo,
	concurrency int,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan audio.ChunkInfo)
	resultChan := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for range min(concurrency, len(chunks)) {
		wg.Go(func() {
			for chunk := range workChan {
				if ctx.Err() != nil {
					return
				}

				result, err := t.Transcribe(ctx, chunk.Path)
				if err != nil {
					cancel()
				}
				resultChan <- chunkResult{
					Index:  chunk.Index,
					Result: result,
					Error:  err,
				}
			}
		})
	}

	go func() {
		defer close(workChan)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case workChan <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]chunkResult, 0, len(chunks))
	var firstErr error
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		results = append(results, result)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && len(results) < len(chunks) {
		return nil, err
	}

	// sort by index to maintain order
	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})

	starts := make(map[int]float64, len(chunks))
	for _, c := range chunks {
		starts[c.Index] = c.StartTime.Seconds()
	}

	merged := &Result{Duration: chunks[len(chunks)-1].EndTime}
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		if merged.Language == "" {
			merged.Language = r.Result.Language
		}
		merged.Segments = append(merged.Segments, offsetSegments(r.Result.Segments, starts[r.Index])...)
	}

	return merged, nil
}

// shifts segments by offset seconds, dropping empty text
func offsetSegments(segments []subtitle.Segment, offset float64) []subtitle.Segment {
	out := make([]subtitle.Segment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out = append(out, subtitle.Segment{
			Start: seg.Start + offset,
			End:   seg.End + offset,
			Text:  text,
		})
	}
	return out
}
