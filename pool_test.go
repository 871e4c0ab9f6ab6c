package docforge

import (
	"runtime"
	"sync"
	"testing"
)

// ---------------------------------------------------------------------------
// TestNewExporterPool - Construction
// ---------------------------------------------------------------------------

func TestNewExporterPool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		want int
	}{
		{"requested size", 4, 4},
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewExporterPool(tt.n)
			defer p.Close()

			if got := p.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestExporterPool_AcquireRelease - Lazy creation and reuse
// ---------------------------------------------------------------------------

func TestExporterPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	t.Run("lazy creation up to capacity", func(t *testing.T) {
		t.Parallel()

		p := NewExporterPool(2)
		defer p.Close()

		e1 := p.Acquire()
		e2 := p.Acquire()
		if e1 == nil || e2 == nil {
			t.Fatal("Acquire returned nil exporter")
		}
		if e1 == e2 {
			t.Error("expected distinct exporters for concurrent acquires")
		}

		p.Release(e1)
		p.Release(e2)
	})

	t.Run("released exporter is reused", func(t *testing.T) {
		t.Parallel()

		p := NewExporterPool(1)
		defer p.Close()

		e1 := p.Acquire()
		p.Release(e1)

		e2 := p.Acquire()
		if e1 != e2 {
			t.Error("expected the released exporter to be reused")
		}
		p.Release(e2)
	})
}

// ---------------------------------------------------------------------------
// TestExporterPool_Close - Shutdown semantics
// ---------------------------------------------------------------------------

func TestExporterPool_Close(t *testing.T) {
	t.Parallel()

	p := NewExporterPool(2)
	e := p.Acquire()

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// Release after close must not panic on the closed channel.
	p.Release(e)

	// Close is idempotent.
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestExporterPool_ConcurrentReleaseClose - Release racing Close must not panic
// ---------------------------------------------------------------------------

func TestExporterPool_ConcurrentReleaseClose(t *testing.T) {
	t.Parallel()

	// A Release landing exactly as Close closes the idle channel used to
	// panic on the closed-channel send. Hammer the interleaving.
	for i := 0; i < 100; i++ {
		p := NewExporterPool(2)
		e := p.Acquire()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Release(e)
		}()
		go func() {
			defer wg.Done()
			_ = p.Close()
		}()
		wg.Wait()
	}
}

// ---------------------------------------------------------------------------
// TestResolvePoolSize - Worker resolution
// ---------------------------------------------------------------------------

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	t.Run("explicit workers win", func(t *testing.T) {
		t.Parallel()

		if got := ResolvePoolSize(3); got != 3 {
			t.Errorf("ResolvePoolSize(3) = %d, want 3", got)
		}
		// Explicit values bypass the automatic cap.
		if got := ResolvePoolSize(12); got != 12 {
			t.Errorf("ResolvePoolSize(12) = %d, want 12", got)
		}
	})

	t.Run("auto stays within bounds", func(t *testing.T) {
		t.Parallel()

		got := ResolvePoolSize(0)
		if got < MinPoolSize || got > MaxPoolSize {
			t.Errorf("ResolvePoolSize(0) = %d, want within [%d, %d]", got, MinPoolSize, MaxPoolSize)
		}

		want := runtime.GOMAXPROCS(0) / 2
		if want < MinPoolSize {
			want = MinPoolSize
		}
		if want > MaxPoolSize {
			want = MaxPoolSize
		}
		if got != want {
			t.Errorf("ResolvePoolSize(0) = %d, want %d for GOMAXPROCS=%d", got, want, runtime.GOMAXPROCS(0))
		}
	})
}
