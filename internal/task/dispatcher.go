package task

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ewhitley/certscan-api/internal/domain"
)

// Common errors returned by the Dispatcher
var (
	ErrQueueClosed = errors.New("dispatch queue is closed")
	ErrQueueFull   = errors.New("dispatch queue is full")
)

// Item is one unit of pending work. Created at enqueue, destroyed at
// dequeue.
type Item struct {
	Request    *domain.ProcessingRequest
	EnqueuedAt time.Time

	// Claimed records whether admission acquired the claim for this
	// fingerprint. False means the cache store was unavailable and the job
	// runs in degraded direct mode: no dedup, best-effort caching.
	Claimed bool

	// seq is a monotonic enqueue sequence; it is the FIFO tie-break within
	// a priority tier.
	seq uint64
}

// Dispatcher maintains the pending-work ordering and admission limit.
// Ordering is strict priority first (numerically lower is more urgent),
// submission order within a tier. Once depth reaches the configured
// capacity, Enqueue fails fast with ErrQueueFull — the system's primary
// backpressure mechanism. No aging is applied to low-priority items; that is
// a deliberate policy choice keeping ordering simple and verifiable.
type Dispatcher struct {
	mu      sync.Mutex
	pending itemHeap
	nextSeq uint64
	closed  bool

	capacity int
	signal   chan struct{}
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher with the given capacity.
func NewDispatcher(capacity int, logger *slog.Logger) *Dispatcher {
	if capacity <= 0 {
		logger.Warn("invalid queue capacity specified, using minimum",
			"specified_capacity", capacity,
			"minimum", 1)
		capacity = 1
	}

	return &Dispatcher{
		pending:  make(itemHeap, 0, capacity),
		capacity: capacity,
		// One token per enqueued item; capacity bounds the heap so sends
		// never block.
		signal: make(chan struct{}, capacity),
		logger: logger,
	}
}

// Enqueue admits an item into the pending queue, stamping its enqueue time.
// Fails fast with ErrQueueFull at capacity rather than growing unbounded, so
// the gateway can answer the client immediately.
func (d *Dispatcher) Enqueue(item *Item) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrQueueClosed
	}
	if len(d.pending) >= d.capacity {
		d.mu.Unlock()
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, d.capacity)
	}

	item.EnqueuedAt = time.Now().UTC()
	item.seq = d.nextSeq
	d.nextSeq++
	heap.Push(&d.pending, item)
	depth := len(d.pending)

	// Send under the lock: the buffer is sized to capacity so this never
	// blocks, and it cannot race a concurrent Close closing the channel.
	d.signal <- struct{}{}
	d.mu.Unlock()

	d.logger.Debug("item enqueued",
		"request_id", item.Request.RequestID,
		"priority", item.Request.Priority,
		"queue_depth", depth,
		"queue_capacity", d.capacity)
	return nil
}

// Dequeue removes and returns the most urgent pending item, blocking until
// one is available, the context is done, or the queue is closed and
// drained.
func (d *Dispatcher) Dequeue(ctx context.Context) (*Item, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, ok := <-d.signal:
			d.mu.Lock()
			if len(d.pending) > 0 {
				item := heap.Pop(&d.pending).(*Item)
				d.mu.Unlock()
				return item, nil
			}
			closed := d.closed
			d.mu.Unlock()

			if !ok && closed {
				return nil, ErrQueueClosed
			}
		}
	}
}

// Depth returns the current number of pending items.
func (d *Dispatcher) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Capacity returns the configured admission cap.
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

// Close stops admission. Already-pending items remain dequeueable until
// drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.signal)
	d.logger.Info("dispatch queue closed")
}

// itemHeap orders by (priority, enqueue sequence): strict priority with FIFO
// tie-break.
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Request.Priority != h[j].Request.Priority {
		return h[i].Request.Priority < h[j].Request.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(*Item))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
