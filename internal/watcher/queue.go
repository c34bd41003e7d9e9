package watcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/docsink/internal/ingest"
)

// Ingestor runs the pipeline for one candidate file.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (*ingest.Outcome, error)
}

// Queue is a bounded work queue feeding a limited worker pool. A path
// already waiting in the queue is not accepted twice; a path being
// processed may be accepted again and queues behind the in-flight run.
type Queue struct {
	ingestor Ingestor
	ch       chan string
	workers  int
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	started bool
	stopped bool

	done         chan struct{}
	dispatchDone chan struct{}
	group        *errgroup.Group
	groupCtx     context.Context
}

// NewQueue creates a queue with the given buffer size and worker limit.
// logger may be nil.
func NewQueue(ingestor Ingestor, size, workers int, logger *zap.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		ingestor:     ingestor,
		ch:           make(chan string, size),
		workers:      workers,
		logger:       logger,
		pending:      make(map[string]struct{}),
		done:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
}

// Start launches the dispatcher. Workers run until Stop is called; ctx
// cancellation propagates into in-flight ingestions.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.group, q.groupCtx = errgroup.WithContext(ctx)
	q.group.SetLimit(q.workers)
	q.mu.Unlock()
	go q.dispatch()
}

// Enqueue offers a path to the queue, blocking while the buffer is full.
// Returns false if the path is already queued or the queue is stopped.
func (q *Queue) Enqueue(path string) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	if _, dup := q.pending[path]; dup {
		q.mu.Unlock()
		return false
	}
	q.pending[path] = struct{}{}
	q.mu.Unlock()

	select {
	case q.ch <- path:
		return true
	case <-q.done:
		q.clearPending(path)
		return false
	}
}

// Pending returns the number of paths accepted but not yet handed to a
// worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) dispatch() {
	defer close(q.dispatchDone)
	for {
		select {
		case <-q.done:
			return
		case path := <-q.ch:
			q.clearPending(path)
			q.group.Go(func() error {
				q.ingestOne(path)
				return nil
			})
		}
	}
}

func (q *Queue) ingestOne(path string) {
	out, err := q.ingestor.IngestFile(q.groupCtx, path)
	if err == nil {
		if out.Skipped {
			q.logger.Debug("queue skipped unchanged file", zap.String("path", path))
			return
		}
		q.logger.Debug("queue processed file",
			zap.String("path", path),
			zap.String("document_id", out.DocumentID),
			zap.String("status", string(out.Status)))
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		q.logger.Debug("queue ingestion cancelled", zap.String("path", path))
		return
	}
	var verr *ingest.ValidationError
	if errors.As(err, &verr) {
		q.logger.Debug("queue rejected file", zap.String("path", path), zap.String("reason", verr.Reason))
		return
	}
	q.logger.Warn("queue ingestion failed", zap.String("path", path), zap.Error(err))
}

func (q *Queue) clearPending(path string) {
	q.mu.Lock()
	delete(q.pending, path)
	q.mu.Unlock()
}

// Stop refuses new work, stops dispatching, and waits for in-flight
// ingestions to finish. Queued paths not yet dispatched are dropped; a
// startup scan finds their files again.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	q.mu.Unlock()

	close(q.done)
	if started {
		<-q.dispatchDone
		_ = q.group.Wait()
	}
}
