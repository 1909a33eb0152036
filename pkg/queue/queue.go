// Package queue bounds how many extraction requests run simultaneously
// during a batch scan, holding the rest in arrival order.
package queue

import (
	"sync"

	"imgscan/pkg/logger"
)

// Task is a unit of work admitted by the queue. It runs only once a
// concurrency slot is free.
type Task func()

// RequestQueue executes at most limit tasks concurrently and promotes
// queued tasks strictly FIFO as active ones finish. No task is ever
// dropped; every submitted task runs exactly once.
type RequestQueue struct {
	limit  int
	logger logger.Logger

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
	wg      sync.WaitGroup
}

// New creates a queue admitting at most limit concurrent tasks. A limit
// below one is treated as one.
func New(limit int, log logger.Logger) *RequestQueue {
	if limit < 1 {
		limit = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &RequestQueue{limit: limit, logger: log}
}

// Submit enqueues a task. The task starts immediately when a slot is
// free, otherwise it waits its turn. Submit never blocks.
func (q *RequestQueue) Submit(task Task) {
	q.mu.Lock()
	var admit chan struct{}
	if q.active < q.limit {
		q.active++
	} else {
		admit = make(chan struct{})
		q.waiters = append(q.waiters, admit)
		q.logger.DebugWithFields("task queued", map[string]interface{}{
			"active": q.active,
			"queued": len(q.waiters),
		})
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		if admit != nil {
			<-admit
		}
		defer q.release()
		task()
	}()
}

// release frees a slot and promotes the oldest queued task, if any.
func (q *RequestQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return // slot ownership transfers to the promoted task
	}
	q.active--
}

// Wait blocks until every submitted task has finished.
func (q *RequestQueue) Wait() {
	q.wg.Wait()
}

// Active returns the number of currently running tasks.
func (q *RequestQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Queued returns the number of tasks waiting for a slot.
func (q *RequestQueue) Queued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// HasQueued reports whether anything is waiting for a slot.
func (q *RequestQueue) HasQueued() bool {
	return q.Queued() > 0
}

// Limit returns the concurrency bound.
func (q *RequestQueue) Limit() int {
	return q.limit
}
