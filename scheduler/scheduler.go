// Package scheduler implements a mutually-exclusive write scheduler that
// serializes body writes for one chunked HTTP response so chunks never
// interleave.
//
// A single consumer drains an eapache/queue-backed FIFO in strict order,
// awaiting each task before dequeueing the next. Writes on one HTTP
// response must be totally ordered, which rules out a worker-pool design
// spinning several goroutines against one queue.
package scheduler

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// Task is one unit of scheduled work. It receives the context passed to
// Scheduler.Run so it can honor cancellation mid-write.
type Task func(ctx context.Context)

// sentinel is enqueued by Complete; tasks queued ahead of it run first,
// and once the drain loop dequeues it the terminal flag is set and Run
// returns.
type sentinel struct{}

// Scheduler is a single-consumer, multi-producer FIFO queue of tasks with a
// distinguished "complete" marker.
type Scheduler struct {
	mu   sync.Mutex
	q    *queue.Queue
	sem  chan struct{} // buffered counting semaphore, one token per enqueue
	done bool
}

// New returns a Scheduler ready to accept Schedule/Complete calls before
// Run is ever invoked — scheduling never blocks the caller.
func New() *Scheduler {
	return &Scheduler{
		q:   queue.New(),
		sem: make(chan struct{}, 1<<20), // effectively unbounded; never blocks Schedule
	}
}

// Schedule enqueues task. Never blocks the caller.
func (s *Scheduler) Schedule(task Task) {
	s.mu.Lock()
	s.q.Add(task)
	s.mu.Unlock()
	s.sem <- struct{}{}
}

// Complete enqueues the terminal marker. After it is drained, Run returns.
func (s *Scheduler) Complete() {
	s.mu.Lock()
	s.q.Add(sentinel{})
	s.mu.Unlock()
	s.sem <- struct{}{}
}

// Run drains tasks sequentially — awaiting each before dequeueing the
// next — until Complete's marker is drained or ctx is cancelled. On
// cancellation, any tasks still queued are abandoned.
//
// Ordering guarantee: for Schedule(t1) observed before Schedule(t2), t1
// runs to completion before t2 starts.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.sem:
		}

		s.mu.Lock()
		item := s.q.Remove()
		s.mu.Unlock()

		if _, isSentinel := item.(sentinel); isSentinel {
			s.mu.Lock()
			s.done = true
			s.mu.Unlock()
			return
		}

		task, ok := item.(Task)
		if !ok {
			continue
		}
		task(ctx)

		if ctx.Err() != nil {
			return
		}
	}
}

// Done reports whether Complete's marker has already been drained by Run.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
