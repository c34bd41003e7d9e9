package ingest

import "sync"

// pathLocks serializes work per cleaned absolute path. A second ingestion of
// the same path queues behind the first and re-evaluates the dedup rules
// once it acquires the lock, so overlapping events collapse into a skip.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// acquire blocks until the path lock is held and returns the release func.
func (p *pathLocks) acquire(path string) func() {
	p.mu.Lock()
	l, ok := p.locks[path]
	if !ok {
		l = &pathLock{}
		p.locks[path] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, path)
		}
		p.mu.Unlock()
	}
}
