package main

import (
	docforge "github.com/docforge/go-docforge"
)

// exporterPool adapts docforge.ExporterPool to the CLI's Pool interface
// so tests can substitute a fake pool without a browser.
type exporterPool struct {
	inner *docforge.ExporterPool
}

// Compile-time check that exporterPool implements Pool.
var _ Pool = (*exporterPool)(nil)

func newExporterPool(n int, opts ...docforge.Option) *exporterPool {
	return &exporterPool{inner: docforge.NewExporterPool(n, opts...)}
}

func (p *exporterPool) Acquire() Exporter {
	return p.inner.Acquire()
}

func (p *exporterPool) Release(e Exporter) {
	if exp, ok := e.(*docforge.Exporter); ok {
		p.inner.Release(exp)
	}
}

func (p *exporterPool) Size() int {
	return p.inner.Size()
}

func (p *exporterPool) Close() error {
	return p.inner.Close()
}
