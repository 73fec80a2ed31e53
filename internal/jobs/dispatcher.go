package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// DefaultQueueSize bounds the side-effect queue. When full, Enqueue
	// runs the task inline rather than dropping it.
	DefaultQueueSize = 256
	// DefaultTaskTimeout bounds one side-effect task
	DefaultTaskTimeout = 30 * time.Second
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher is a bounded background queue for post-answer side effects:
// message persistence, notifications, and usage counters. Failures are
// logged, never propagated; the response path never blocks on it.
type Dispatcher struct {
	tasks       chan task
	taskTimeout time.Duration
	stopChan    chan struct{}
	doneChan    chan struct{}
	stopOnce    sync.Once
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(queueSize int, taskTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Dispatcher{
		tasks:       make(chan task, queueSize),
		taskTimeout: taskTimeout,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Enqueue submits a task. A full queue degrades to running the task
// inline so side effects are never silently dropped.
func (d *Dispatcher) Enqueue(name string, fn func(ctx context.Context) error) {
	select {
	case d.tasks <- task{name: name, fn: fn}:
	default:
		log.Printf("dispatcher queue full, running %s inline", name)
		d.run(task{name: name, fn: fn})
	}
}

// Start drains the queue until the context is cancelled or Stop is
// called. Remaining queued tasks are drained before returning.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.doneChan)

	log.Printf("side-effect dispatcher started (queue size %d)", cap(d.tasks))

	for {
		select {
		case <-ctx.Done():
			d.drain()
			log.Println("dispatcher stopped: context cancelled")
			return
		case <-d.stopChan:
			d.drain()
			log.Println("dispatcher stopped: stop signal received")
			return
		case t := <-d.tasks:
			d.run(t)
		}
	}
}

// Stop gracefully stops the dispatcher, draining queued tasks first.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	<-d.doneChan
	log.Println("dispatcher shutdown complete")
}

func (d *Dispatcher) drain() {
	for {
		select {
		case t := <-d.tasks:
			d.run(t)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	if err := t.fn(ctx); err != nil {
		log.Printf("side-effect task %s failed: %v", t.name, err)
	}
}
