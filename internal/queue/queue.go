// Package queue runs background jobs on a fixed worker pool. Dispatch
// tasks land here only after the transaction that produced them has
// committed; a job either runs to completion or is lost with the process.
package queue

import (
	"log"
	"runtime/debug"
	"sync"
)

// Job is a unit of background work.
type Job func()

// Queue is a bounded job queue consumed by a pool of worker goroutines.
type Queue struct {
	jobs    chan Job
	workers int
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func New(workers, bufferSize int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue{
		jobs:    make(chan Job, bufferSize),
		workers: workers,
	}
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	log.Printf("Dispatch queue started (%d workers)", q.workers)
}

// Stop drains remaining jobs and waits for workers to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

// Enqueue submits a job. Blocks when the buffer is full; returns false
// after Stop. The read lock is held across the send so Stop cannot close
// the channel under an in-flight Enqueue.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return false
	}
	q.jobs <- job
	return true
}

func (q *Queue) run() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.safeRun(job)
	}
}

// safeRun keeps one panicking job from taking down the worker.
func (q *Queue) safeRun(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: dispatch job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	job()
}
