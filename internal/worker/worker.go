package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by TrySubmit when the buffer has no room.
var ErrQueueFull = errors.New("worker: queue full")

// ErrStopped is returned when submitting to a pool that has been stopped.
var ErrStopped = errors.New("worker: pool stopped")

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs a fixed number of workers over a buffered job queue.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool[T any](numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processor(ctx, job)
		}
	}
}

// Submit blocks until the job is queued.
func (p *Pool[T]) Submit(job T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	p.jobs <- job
	return nil
}

// TrySubmit queues the job only if the buffer has room.
func (p *Pool[T]) TrySubmit(job T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending is the number of queued jobs not yet picked up by a worker.
func (p *Pool[T]) Pending() int {
	return len(p.jobs)
}

// Stop closes the queue and waits for workers to finish what they hold.
// It is safe to call more than once.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
