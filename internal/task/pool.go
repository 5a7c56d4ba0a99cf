package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler executes one dequeued item.
type Handler func(ctx context.Context, item *Item)

// Pool is a fixed set of concurrent executor slots consuming the
// dispatcher. The bound matches external API rate limits and memory
// ceilings; an idle slot suspends in Dequeue without blocking the others.
type Pool struct {
	dispatcher  *Dispatcher
	handler     Handler
	workerCount int

	busy   atomic.Int64
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// PoolConfig holds configuration options for the worker pool.
type PoolConfig struct {
	// WorkerCount determines how many concurrent executor slots to run.
	// If zero or negative, defaults to 1.
	WorkerCount int
}

// NewPool creates a worker pool reading from the dispatcher.
func NewPool(dispatcher *Dispatcher, cfg PoolConfig, handler Handler, logger *slog.Logger) *Pool {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		dispatcher:  dispatcher,
		handler:     handler,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Busy returns the number of slots currently executing a job.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Size returns the configured slot count.
func (p *Pool) Size() int {
	return p.workerCount
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		item, err := p.dispatcher.Dequeue(p.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				logger.Debug("stopping worker")
				return
			}
			logger.Error("dequeue failed", "error", err)
			continue
		}

		p.busy.Add(1)
		p.runItem(item, logger)
		p.busy.Add(-1)
	}
}

// runItem isolates one job so a panic in the pipeline kills the job, not the
// slot.
func (p *Pool) runItem(item *Item, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing item",
				"request_id", item.Request.RequestID,
				"panic", r)
		}
	}()

	p.handler(p.ctx, item)
}
