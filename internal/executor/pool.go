package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultWorkers is the pool size when none is configured
const DefaultWorkers = 3

// ErrStopped is returned by Submit after the pool has been stopped
var ErrStopped = errors.New("executor pool is stopped")

// Body is a unit of background work. Its return value or error becomes the
// handle's terminal result.
type Body func(ctx context.Context) (any, error)

// Handle tracks one submitted body from queueing to completion.
type Handle struct {
	done    chan struct{}
	payload any
	err     error
}

// Done reports whether the body has finished, without blocking.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result returns the body's outcome. Only valid once Done reports true.
func (h *Handle) Result() (any, error) {
	return h.payload, h.err
}

type item struct {
	name   string
	handle *Handle
	body   Body
}

// Config holds pool configuration
type Config struct {
	Workers int
	Logger  *slog.Logger
}

// Pool runs submitted bodies on a bounded set of worker goroutines.
// The queue is unbounded: admission is already capped upstream by the quota
// ledger and the one-job-per-key rule, so Submit never rejects for load.
type Pool struct {
	logger  *slog.Logger
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*item
	stopped bool

	wg sync.WaitGroup
}

// NewPool creates a new executor pool
func NewPool(cfg *Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		logger:  logger,
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)

	return p
}

// Start spawns the worker goroutines. Bodies receive ctx, which the caller
// cancels on shutdown.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Spawning executor pool",
		slog.Int("workers", p.workers),
	)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
}

// Submit queues a body for execution and returns its handle immediately.
// It never blocks on a busy pool.
func (p *Pool) Submit(name string, body Body) (*Handle, error) {
	h := &Handle{done: make(chan struct{})}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrStopped
	}
	p.queue = append(p.queue, &item{name: name, handle: h, body: body})
	queued := len(p.queue)
	p.mu.Unlock()

	p.cond.Signal()

	p.logger.Debug("Job queued",
		slog.String("job", name),
		slog.Int("queue_len", queued),
	)

	return h, nil
}

// Stop refuses further submissions, lets queued bodies finish, and waits for
// the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()

	p.logger.Info("Executor pool stopped")
}

func (p *Pool) workerLoop(ctx context.Context, workerNum int) {
	defer p.wg.Done()

	p.logger.Debug("Worker goroutine started",
		slog.Int("worker_num", workerNum),
	)

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			p.logger.Debug("Worker goroutine stopping",
				slog.Int("worker_num", workerNum),
			)
			return
		}
		it := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.runJob(ctx, it, workerNum)
	}
}

// runJob executes one body. A panic inside the body becomes a Failed result;
// it must never take the worker down.
func (p *Pool) runJob(ctx context.Context, it *item, workerNum int) {
	h := it.handle
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("job %s panicked: %v", it.name, r)
			p.logger.Error("Job panicked",
				slog.String("job", it.name),
				slog.Int("worker_num", workerNum),
				slog.Any("panic", r),
			)
		}
	}()

	p.logger.Info("Worker picked up job",
		slog.String("job", it.name),
		slog.Int("worker_num", workerNum),
	)

	h.payload, h.err = it.body(ctx)

	if h.err != nil {
		p.logger.Error("Job failed",
			slog.String("job", it.name),
			slog.Int("worker_num", workerNum),
			slog.String("error", h.err.Error()),
		)
		return
	}

	p.logger.Info("Job completed",
		slog.String("job", it.name),
		slog.Int("worker_num", workerNum),
	)
}
