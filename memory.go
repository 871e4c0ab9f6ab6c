package docforge

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// maxMemorySamples bounds the retained sampling history; optimization
// truncates it further.
const maxMemorySamples = 120

// MemorySample is one point of process memory usage.
type MemorySample struct {
	At         time.Time
	HeapBytes  uint64
	TotalBytes uint64
}

// MemoryMonitor samples process memory on a fixed interval and triggers
// an optimization pass when usage crosses a threshold: stale cache
// entries are expired, retained history is truncated, and the runtime is
// asked to collect garbage.
type MemoryMonitor struct {
	mu        sync.Mutex
	interval  time.Duration
	threshold uint64
	caches    []*ContentCache
	onOptim   []func()
	samples   []MemorySample
	cancel    context.CancelFunc
	running   bool

	// readUsage is replaceable by tests.
	readUsage func() (heap, total uint64)
}

// NewMemoryMonitor creates a monitor with the given sampling interval and
// usage threshold in bytes. Non-positive arguments fall back to package
// defaults.
func NewMemoryMonitor(interval time.Duration, threshold uint64) *MemoryMonitor {
	if interval <= 0 {
		interval = DefaultMemoryInterval
	}
	if threshold == 0 {
		threshold = DefaultMemoryThreshold
	}
	return &MemoryMonitor{
		interval:  interval,
		threshold: threshold,
		readUsage: readRuntimeUsage,
	}
}

// SetThreshold replaces the usage threshold for subsequent samples.
// A zero value falls back to the package default.
func (m *MemoryMonitor) SetThreshold(bytes uint64) {
	if bytes == 0 {
		bytes = DefaultMemoryThreshold
	}
	m.mu.Lock()
	m.threshold = bytes
	m.mu.Unlock()
}

// Watch registers a cache for expiry during optimization passes.
func (m *MemoryMonitor) Watch(c *ContentCache) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// OnOptimize registers an extra callback run during optimization passes.
func (m *MemoryMonitor) OnOptimize(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOptim = append(m.onOptim, fn)
}

// Start begins periodic sampling until Stop is called or ctx is canceled.
// Starting an already-running monitor is a no-op.
func (m *MemoryMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sample()
			}
		}
	}()
}

// Stop halts sampling.
func (m *MemoryMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.running = false
}

// Sample records one usage point and triggers optimization when the
// threshold is exceeded. Exposed so the export pipeline can force a
// check during long jobs.
func (m *MemoryMonitor) Sample() MemorySample {
	heap, total := m.usageReader()()
	s := MemorySample{At: time.Now(), HeapBytes: heap, TotalBytes: total}

	m.mu.Lock()
	m.samples = append(m.samples, s)
	if len(m.samples) > maxMemorySamples {
		m.samples = m.samples[len(m.samples)-maxMemorySamples:]
	}
	over := heap > m.threshold
	m.mu.Unlock()

	if over {
		m.Optimize()
	}
	return s
}

// Optimize releases reclaimable memory: expires stale cache entries,
// truncates the sampling history, runs registered callbacks, and
// requests a garbage collection.
func (m *MemoryMonitor) Optimize() {
	m.mu.Lock()
	caches := append([]*ContentCache(nil), m.caches...)
	callbacks := append([]func(){}, m.onOptim...)
	if len(m.samples) > maxMemorySamples/4 {
		m.samples = m.samples[len(m.samples)-maxMemorySamples/4:]
	}
	m.mu.Unlock()

	for _, c := range caches {
		c.Expire()
	}
	for _, fn := range callbacks {
		fn()
	}
	runtime.GC()
}

// ReleaseAll is the aggressive variant used when the host surface is
// hidden or backgrounded: all watched caches are cleared immediately.
func (m *MemoryMonitor) ReleaseAll() {
	m.mu.Lock()
	caches := append([]*ContentCache(nil), m.caches...)
	m.samples = nil
	m.mu.Unlock()

	for _, c := range caches {
		c.Clear()
	}
	runtime.GC()
}

// History returns a copy of the retained samples, oldest first.
func (m *MemoryMonitor) History() []MemorySample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MemorySample(nil), m.samples...)
}

// usageReader returns the current reader under the lock.
func (m *MemoryMonitor) usageReader() func() (uint64, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readUsage
}

// readRuntimeUsage reads process memory from the Go runtime.
func readRuntimeUsage() (heap, total uint64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, ms.Sys
}
