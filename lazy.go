package docforge

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// loadResult memoizes one load attempt, success or failure.
type loadResult struct {
	handle any
	err    error
}

// lazyLoader defers acquisition of heavy dependencies (the headless
// browser, the PDF composer) until first use. A load is attempted once
// per name and the result is memoized; concurrent requests for the same
// not-yet-loaded dependency share a single in-flight load.
type lazyLoader struct {
	mu      sync.Mutex
	results map[string]loadResult
	group   singleflight.Group
}

func newLazyLoader() *lazyLoader {
	return &lazyLoader{results: make(map[string]loadResult)}
}

// Load returns the memoized handle for name, invoking loadFn exactly once
// across all callers. A failed load is also memoized: the dependency is
// not re-attempted on every call.
func (l *lazyLoader) Load(name string, loadFn func() (any, error)) (any, error) {
	l.mu.Lock()
	if r, ok := l.results[name]; ok {
		l.mu.Unlock()
		return r.handle, r.err
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(name, func() (any, error) {
		handle, err := loadFn()
		l.mu.Lock()
		l.results[name] = loadResult{handle: handle, err: err}
		l.mu.Unlock()
		return handle, err
	})
	return v, err
}

// Loaded reports whether a load for name has completed (either way).
func (l *lazyLoader) Loaded(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.results[name]
	return ok
}

// Forget drops the memoized result so the next Load retries, used when a
// dependency handle is closed.
func (l *lazyLoader) Forget(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.results, name)
}
