package translate

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// one provider request: a batch of items in, the same indices out
type batcher interface {
	translateBatch(ctx context.Context, items []TranslationItem) ([]TranslationResult, error)
}

// BatchTranslator splits items into batches and sends up to Concurrency
// of them at once. The first failing batch cancels the rest.
type BatchTranslator struct {
	batcher     batcher
	batchSize   int
	concurrency int
}

func NewBatchTranslator(b batcher, opts Options) *BatchTranslator {
	t := &BatchTranslator{
		batcher:     b,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
	}
	if t.batchSize <= 0 {
		t.batchSize = DefaultBatchSize
	}
	if t.concurrency <= 0 {
		t.concurrency = DefaultConcurrency
	}
	return t
}

type batchResult struct {
	Index   int
	Results []TranslationResult
	Error   error
}

func (t *BatchTranslator) Translate(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
	if len(items) == 0 {
		return []TranslationResult{}, nil
	}

	var batches [][]TranslationItem
	for i := 0; i < len(items); i += t.batchSize {
		batches = append(batches, items[i:min(i+t.batchSize, len(items))])
	}

	if len(batches) == 1 {
		results, err := t.translateChecked(ctx, batches[0])
		if err != nil {
			return nil, err
		}
		sortResults(results)
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workChan := make(chan int)
	resultChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for range min(t.concurrency, len(batches)) {
		wg.Go(func() {
			for idx := range workChan {
				if ctx.Err() != nil {
					return
				}
				results, err := t.translateChecked(ctx, batches[idx])
				if err != nil {
					cancel()
				}
				resultChan <- batchResult{Index: idx, Results: results, Error: err}
			}
		})
	}

	go func() {
		defer close(workChan)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var (
		all      []TranslationResult
		firstErr error
		done     int
	)
	for result := range resultChan {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("batch %d failed: %w", result.Index, result.Error)
			}
			continue
		}
		done++
		all = append(all, result.Results...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if done < len(batches) {
		return nil, ctx.Err()
	}

	sortResults(all)
	return all, nil
}

func sortResults(results []TranslationResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
}

// rejects responses whose indices do not match the request
func (t *BatchTranslator) translateChecked(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
	results, err := t.batcher.translateBatch(ctx, items)
	if err != nil {
		return nil, err
	}

	if len(results) != len(items) {
		return nil, fmt.Errorf("expected %d results, got %d", len(items), len(results))
	}

	want := make(map[int]bool, len(items))
	for _, it := range items {
		want[it.Index] = true
	}
	for _, r := range results {
		if !want[r.Index] {
			return nil, fmt.Errorf("unexpected index %d in response", r.Index)
		}
		delete(want, r.Index)
	}

	return results, nil
}
