package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"scribe/internal/logging"
	"scribe/internal/media"
)

// DefaultWorkers is used when New receives a non-positive worker count.
const DefaultWorkers = 10

// Handler processes one file. It must not assume any ordering between files.
type Handler func(ctx context.Context, file media.File)

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Workers   int `json:"workers"`
	Submitted int `json:"submitted"`
	Rejected  int `json:"rejected"`
	Completed int `json:"completed"`
	Panics    int `json:"panics"`
	Active    int `json:"active"`
	Peak      int `json:"peak"`
	Queued    int `json:"queued"`
}

// Pool is a bounded worker pool in front of an unbounded FIFO queue.
type Pool struct {
	workers int
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []media.File
	pending map[string]struct{}
	closed  bool
	started bool
	stats   Stats

	group errgroup.Group
}

// New creates a pool with the given worker count. Workers start with Start.
func New(workers int, handler Handler, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{
		workers: workers,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "dispatch"),
		pending: make(map[string]struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	p.stats.Workers = workers
	return p
}

// Start launches the workers. Handlers receive ctx; cancelling it does not
// stop the workers, it only reaches the handlers. Start is a no-op after the
// first call.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 1; i <= p.workers; i++ {
		worker := i
		p.group.Go(func() error {
			p.work(ctx, worker)
			return nil
		})
	}
	p.logger.Debug("dispatcher started",
		logging.Int("workers", p.workers),
		logging.String(logging.FieldEventType, "dispatch_started"),
	)
}

// Submit queues file for processing without blocking. It returns false when
// the pool is closed or the same path is already queued or running.
func (p *Pool) Submit(file media.File) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.stats.Rejected++
		return false
	}
	if _, dup := p.pending[file.Path]; dup {
		p.stats.Rejected++
		p.logger.Debug("duplicate submit ignored",
			logging.String(logging.FieldFile, file.Path),
			logging.String(logging.FieldEventType, "dispatch_duplicate"),
		)
		return false
	}
	p.pending[file.Path] = struct{}{}
	p.queue = append(p.queue, file)
	p.stats.Submitted++
	p.cond.Signal()
	return true
}

// Close stops intake. Files already queued still run.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()
}

// Wait blocks until the pool is closed, the queue is drained and every worker
// has exited. Calling Wait on a pool that was never started starts it with a
// background context so queued files are not lost.
func (p *Pool) Wait() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		p.Start(context.Background())
	}
	_ = p.group.Wait()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Queued = len(p.queue)
	return s
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		file, ok := p.next()
		if !ok {
			return
		}
		p.run(ctx, worker, file)
		p.finish(file)
	}
}

func (p *Pool) next() (media.File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return media.File{}, false
	}
	file := p.queue[0]
	p.queue[0] = media.File{}
	p.queue = p.queue[1:]
	p.stats.Active++
	if p.stats.Active > p.stats.Peak {
		p.stats.Peak = p.stats.Active
	}
	return file, true
}

func (p *Pool) finish(file media.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, file.Path)
	p.stats.Active--
	p.stats.Completed++
}

func (p *Pool) run(ctx context.Context, worker int, file media.File) {
	defer func() {
		if r := recover(); r != nil {
			p.mu.Lock()
			p.stats.Panics++
			p.mu.Unlock()
			logging.ErrorWithContext(p.logger, "job panicked; worker continues", "dispatch_panic",
				logging.Int(logging.FieldWorker, worker),
				logging.String(logging.FieldFile, file.Path),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this as a bug with the stack trace"),
			)
		}
	}()
	p.handler(ctx, file)
}
