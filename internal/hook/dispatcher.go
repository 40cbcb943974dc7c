package hook

import (
	"context"
	"log"

	"bulkhook-backend/internal/queue"
)

// DispatchTask is one hook execution against one document. Consumed
// exactly once by a worker; not retried on failure.
type DispatchTask struct {
	HookName    string
	Doctype     string
	DocName     string
	Doc         map[string]any // document snapshot; nil forces re-resolution
	FromRequest bool
}

// Dispatcher collects tasks on the unit of work and enqueues them only
// after the surrounding transaction has committed, so a task never
// observes state that could still roll back.
type Dispatcher struct {
	queue     *queue.Queue
	publisher *Publisher
}

func NewDispatcher(q *queue.Queue, p *Publisher) *Dispatcher {
	return &Dispatcher{queue: q, publisher: p}
}

// Schedule records the task on the unit of work. Nothing runs yet.
func (d *Dispatcher) Schedule(dc *DispatchContext, task *DispatchTask) {
	dc.pending = append(dc.pending, task)
}

// Flush hands all pending tasks to the worker pool. Call only after the
// triggering transaction has committed.
func (d *Dispatcher) Flush(dc *DispatchContext) {
	for _, task := range dc.pending {
		t := task
		ok := d.queue.Enqueue(func() {
			if err := d.publisher.Run(context.Background(), t); err != nil {
				log.Printf("ERROR: kafka hook %s for %s/%s: %v", t.HookName, t.Doctype, t.DocName, err)
			}
		})
		if !ok {
			log.Printf("WARN: dispatch queue stopped, dropping task %s for %s/%s", t.HookName, t.Doctype, t.DocName)
		}
	}
	dc.pending = nil
}

// Discard drops pending tasks after a rollback.
func (d *Dispatcher) Discard(dc *DispatchContext) {
	dc.pending = nil
}
