// Package uithread runs work on a single owner goroutine. Editor document
// and syntax state is only ever touched from inside a dispatched task, so
// it needs no locking of its own.
package uithread

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize bounds the number of pending tasks.
const DefaultQueueSize = 1024

// Dispatcher executes posted tasks one at a time in FIFO order.
type Dispatcher struct {
	tasks chan func()

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	done chan struct{}
}

func New(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until Close is called or ctx ends. Tasks still
// queued at Close run before Run returns; after ctx ends they are
// discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.Close()
			return
		case task, ok := <-d.tasks:
			if !ok {
				return
			}
			task()
		}
	}
}

// Post queues task. It returns false if the dispatcher is closed or the
// queue is full; the task is dropped in that case.
func (d *Dispatcher) Post(task func()) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.tasks <- task:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Invoke runs task on the dispatcher goroutine and waits for it.
func (d *Dispatcher) Invoke(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !d.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks. Already queued tasks still run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.tasks)
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Dropped counts tasks rejected because the queue was full.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }
