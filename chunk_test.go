package docforge

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func anyItems(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = i
	}
	return items
}

// ---------------------------------------------------------------------------
// TestChunkedProcessor_SmallInputSingleCall - Below the threshold, no chunks
// ---------------------------------------------------------------------------

func TestChunkedProcessor_SmallInputSingleCall(t *testing.T) {
	t.Parallel()

	p := NewChunkedProcessor(1000, time.Millisecond, 5000)
	calls := 0

	_, err := p.Process(context.Background(), anyItems(5000), func(ctx context.Context, chunk []any) (any, error) {
		calls++
		if len(chunk) != 5000 {
			t.Errorf("chunk size = %d, want full input", len(chunk))
		}
		return nil, nil
	}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// ---------------------------------------------------------------------------
// TestChunkedProcessor_LargeInputOrderedChunks - 12000 elements -> 12 chunks
// ---------------------------------------------------------------------------

func TestChunkedProcessor_LargeInputOrderedChunks(t *testing.T) {
	t.Parallel()

	p := NewChunkedProcessor(1000, time.Microsecond, 5000)
	var firstElements []int
	var progress []ChunkProgress

	result, err := p.Process(context.Background(), anyItems(12000), func(ctx context.Context, chunk []any) (any, error) {
		firstElements = append(firstElements, chunk[0].(int))
		out := make([]any, len(chunk))
		copy(out, chunk)
		return out, nil
	}, func(pr ChunkProgress) {
		progress = append(progress, pr)
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(firstElements) != 12 {
		t.Fatalf("chunk calls = %d, want 12", len(firstElements))
	}
	for i, first := range firstElements {
		if first != i*1000 {
			t.Errorf("chunk %d started at element %d, want %d", i, first, i*1000)
		}
	}

	// Progress is monotonically increasing and ends at 100%.
	if len(progress) != 12 {
		t.Fatalf("progress callbacks = %d, want 12", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Processed != 12000 || last.Total != 12000 || last.Percentage != 100 {
		t.Errorf("final progress = %+v, want 12000/12000 at 100%%", last)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i].Processed <= progress[i-1].Processed {
			t.Errorf("progress not monotonic at %d: %+v -> %+v", i, progress[i-1], progress[i])
		}
	}

	// Flattened slices preserve total element count and order.
	flat := result.([]any)
	if len(flat) != 12000 {
		t.Fatalf("combined result length = %d, want 12000", len(flat))
	}
	if flat[0].(int) != 0 || flat[11999].(int) != 11999 {
		t.Errorf("combined order broken: first=%v last=%v", flat[0], flat[11999])
	}
}

// ---------------------------------------------------------------------------
// TestChunkedProcessor_Cancellation - Canceled context stops at a boundary
// ---------------------------------------------------------------------------

func TestChunkedProcessor_Cancellation(t *testing.T) {
	t.Parallel()

	p := NewChunkedProcessor(1000, time.Millisecond, 5000)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := p.Process(ctx, anyItems(12000), func(ctx context.Context, chunk []any) (any, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil, nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls >= 12 {
		t.Errorf("calls = %d, want early stop", calls)
	}
}

// ---------------------------------------------------------------------------
// TestChunkedProcessor_ChunkError - Failure aborts and names the chunk
// ---------------------------------------------------------------------------

func TestChunkedProcessor_ChunkError(t *testing.T) {
	t.Parallel()

	p := NewChunkedProcessor(1000, time.Microsecond, 5000)
	boom := errors.New("boom")
	calls := 0

	_, err := p.Process(context.Background(), anyItems(8000), func(ctx context.Context, chunk []any) (any, error) {
		calls++
		if calls == 4 {
			return nil, boom
		}
		return nil, nil
	}, nil)

	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (abort on failure)", calls)
	}
}

// ---------------------------------------------------------------------------
// TestShouldChunk - Threshold boundary
// ---------------------------------------------------------------------------

func TestShouldChunk(t *testing.T) {
	t.Parallel()

	p := NewChunkedProcessor(1000, time.Millisecond, 5000)

	tests := []struct {
		n    int
		want bool
	}{
		{n: 0, want: false},
		{n: 4999, want: false},
		{n: 5000, want: false}, // at the threshold, still one pass
		{n: 5001, want: true},
	}
	for _, tt := range tests {
		if got := p.ShouldChunk(tt.n); got != tt.want {
			t.Errorf("ShouldChunk(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestCombineChunkResults - Merge strategies per result shape
// ---------------------------------------------------------------------------

func TestCombineChunkResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []any
		want    any
	}{
		{
			name:    "singleton passes through",
			results: []any{"only"},
			want:    "only",
		},
		{
			name:    "slices flatten in order",
			results: []any{[]any{1, 2}, []any{3}, []any{4, 5}},
			want:    []any{1, 2, 3, 4, 5},
		},
		{
			name: "maps merge with later chunks winning",
			results: []any{
				map[string]any{"a": 1, "b": 1},
				map[string]any{"b": 2, "c": 2},
			},
			want: map[string]any{"a": 1, "b": 2, "c": 2},
		},
		{
			name:    "mixed shapes returned as-is",
			results: []any{"x", 42},
			want:    []any{"x", 42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CombineChunkResults(tt.results)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CombineChunkResults() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestChunkedProcessor_Defaults - Non-positive knobs fall back
// ---------------------------------------------------------------------------

func TestChunkedProcessor_Defaults(t *testing.T) {
	t.Parallel()

	p := NewChunkedProcessor(0, 0, 0)
	if p.Size != DefaultChunkSize {
		t.Errorf("Size = %d, want %d", p.Size, DefaultChunkSize)
	}
	if p.Delay != DefaultChunkDelay {
		t.Errorf("Delay = %v, want %v", p.Delay, DefaultChunkDelay)
	}
	if p.Threshold != DefaultLargeDocThreshold {
		t.Errorf("Threshold = %d, want %d", p.Threshold, DefaultLargeDocThreshold)
	}
}
