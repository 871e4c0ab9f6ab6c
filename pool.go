package docforge

import (
	"errors"
	"runtime"
	"sync"
)

// Pool sizing bounds.
const (
	// MinPoolSize keeps at least one exporter available.
	MinPoolSize = 1

	// MaxPoolSize caps concurrent browser instances; each one costs a
	// Chrome process worth of memory.
	MaxPoolSize = 8

	// cpuDivisor leaves CPU headroom for Chrome child processes.
	cpuDivisor = 2
)

// ExporterPool hands out Exporter instances for parallel batch exports.
// Each exporter owns its own browser, so pooled jobs render in true
// parallel. Exporters are created lazily on first acquire rather than at
// pool construction, so an idle pool costs nothing.
type ExporterPool struct {
	size int
	opts []Option

	mu        sync.Mutex
	idle      chan *Exporter
	exporters []*Exporter
	created   int
	closed    bool
}

// NewExporterPool creates a pool with capacity for n exporters, each
// configured with opts. Sizes below one are clamped to one.
func NewExporterPool(n int, opts ...Option) *ExporterPool {
	if n < MinPoolSize {
		n = MinPoolSize
	}
	return &ExporterPool{
		size: n,
		opts: opts,
		idle: make(chan *Exporter, n),
	}
}

// Acquire returns an idle exporter, creating one while the pool is below
// capacity. Blocks when every exporter is in use.
func (p *ExporterPool) Acquire() *Exporter {
	select {
	case e := <-p.idle:
		return e
	default:
	}

	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Launching a browser is slow; build the exporter outside the lock.
		e := NewExporter(p.opts...)

		p.mu.Lock()
		p.exporters = append(p.exporters, e)
		p.mu.Unlock()
		return e
	}
	p.mu.Unlock()

	return <-p.idle
}

// Release returns an exporter to the pool. Releasing into a closed pool
// is a no-op. The send happens under the pool lock so it cannot race a
// concurrent Close closing the idle channel, and it can never block:
// channel capacity matches the pool size, which bounds how many
// exporters exist.
func (p *ExporterPool) Release(e *Exporter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.idle <- e
}

// Close shuts down every exporter created so far and returns their close
// errors joined. Repeat calls are no-ops.
func (p *ExporterPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle) // wakes acquirers blocked on an empty pool
	exporters := p.exporters
	p.mu.Unlock()

	var errs []error
	for _, e := range exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ExporterPool) Size() int { return p.size }

// ResolvePoolSize picks the worker count: an explicit positive value
// wins; otherwise half of GOMAXPROCS, clamped to the pool bounds.
// GOMAXPROCS reflects container CPU quotas when automaxprocs is active.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
