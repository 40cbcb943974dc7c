package hook

import (
	"testing"

	"bulkhook-backend/internal/queue"
)

func TestDispatcherFlushRunsPendingTasks(t *testing.T) {
	f := newPublisherFixture(templateDef(), nil, nil)
	q := queue.New(2, 8)
	q.Start()
	d := NewDispatcher(q, f.publisher)

	dc := NewDispatchContext(true)
	d.Schedule(dc, &DispatchTask{HookName: "order-created", Doc: map[string]any{"name": "DOC-1"}})
	d.Schedule(dc, &DispatchTask{HookName: "order-created", Doc: map[string]any{"name": "DOC-2"}})

	if len(f.sender.sent) != 0 {
		t.Fatal("nothing may run before flush")
	}

	d.Flush(dc)
	q.Stop() // drains the pool

	if len(f.sender.sent) != 2 {
		t.Fatalf("expected 2 deliveries after flush, got %d", len(f.sender.sent))
	}
	if len(dc.Pending()) != 0 {
		t.Error("flush must clear pending tasks")
	}
}

func TestDispatcherDiscard(t *testing.T) {
	f := newPublisherFixture(templateDef(), nil, nil)
	q := queue.New(1, 4)
	q.Start()
	defer q.Stop()
	d := NewDispatcher(q, f.publisher)

	dc := NewDispatchContext(true)
	d.Schedule(dc, &DispatchTask{HookName: "order-created", Doc: map[string]any{"name": "DOC-1"}})
	d.Discard(dc)
	d.Flush(dc)

	if len(f.sender.sent) != 0 {
		t.Errorf("discarded tasks must never run, got %d sends", len(f.sender.sent))
	}
}
