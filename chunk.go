package docforge

import (
	"context"
	"fmt"
	"time"
)

// ChunkProgress is delivered to the progress callback after each
// processed chunk.
type ChunkProgress struct {
	Processed  int
	Total      int
	Percentage float64
}

// ChunkFunc processes one ordered subset of a document's elements.
type ChunkFunc func(ctx context.Context, chunk []any) (any, error)

// ChunkedProcessor splits large element lists into fixed-size chunks
// processed strictly in order, yielding briefly between chunks so the
// host stays responsive. Cancellation is cooperative: a canceled context
// takes effect at the next chunk boundary.
type ChunkedProcessor struct {
	Size      int
	Delay     time.Duration
	Threshold int // element count above which chunking applies
}

// NewChunkedProcessor returns a processor with package defaults for any
// non-positive field.
func NewChunkedProcessor(size int, delay time.Duration, threshold int) *ChunkedProcessor {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if delay <= 0 {
		delay = DefaultChunkDelay
	}
	if threshold <= 0 {
		threshold = DefaultLargeDocThreshold
	}
	return &ChunkedProcessor{Size: size, Delay: delay, Threshold: threshold}
}

// ShouldChunk reports whether a document of n elements is large enough
// to be processed in chunks.
func (p *ChunkedProcessor) ShouldChunk(n int) bool {
	return n > p.Threshold
}

// Process runs fn over items in fixed-size chunks and combines the
// per-chunk results. Small inputs (at or below the threshold) are
// processed as a single chunk with no yields.
func (p *ChunkedProcessor) Process(ctx context.Context, items []any, fn ChunkFunc, progress func(ChunkProgress)) (any, error) {
	if !p.ShouldChunk(len(items)) {
		return fn(ctx, items)
	}

	total := len(items)
	results := make([]any, 0, (total+p.Size-1)/p.Size)
	for start := 0; start < total; start += p.Size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.Size, total)
		res, err := fn(ctx, items[start:end])
		if err != nil {
			return nil, fmt.Errorf("processing chunk %d: %w", len(results), err)
		}
		results = append(results, res)

		if progress != nil {
			progress(ChunkProgress{
				Processed:  end,
				Total:      total,
				Percentage: float64(end) / float64(total) * 100,
			})
		}

		// Yield between chunks, but not after the last one.
		if end < total {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}
	return CombineChunkResults(results), nil
}

// CombineChunkResults merges per-chunk results: slices are flattened,
// maps are merged (later chunks win on key collision), a singleton passes
// through unchanged, and anything else is returned as-is.
func CombineChunkResults(results []any) any {
	if len(results) == 1 {
		return results[0]
	}

	allSlices := len(results) > 0
	allMaps := len(results) > 0
	for _, r := range results {
		if _, ok := r.([]any); !ok {
			allSlices = false
		}
		if _, ok := r.(map[string]any); !ok {
			allMaps = false
		}
	}

	if allSlices {
		var flat []any
		for _, r := range results {
			flat = append(flat, r.([]any)...)
		}
		return flat
	}
	if allMaps {
		merged := make(map[string]any)
		for _, r := range results {
			for k, v := range r.(map[string]any) {
				merged[k] = v
			}
		}
		return merged
	}
	return results
}
