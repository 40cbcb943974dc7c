package queue

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEnqueueRunsJobs(t *testing.T) {
	q := New(2, 16)
	q.Start()

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := q.Enqueue(func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
		if !ok {
			t.Fatal("enqueue rejected before stop")
		}
	}
	wg.Wait()
	q.Stop()

	if ran != 10 {
		t.Errorf("expected 10 jobs run, got %d", ran)
	}
}

func TestStopDrainsPendingJobs(t *testing.T) {
	q := New(1, 16)
	q.Start()

	var ran int64
	for i := 0; i < 5; i++ {
		q.Enqueue(func() { atomic.AddInt64(&ran, 1) })
	}
	q.Stop()

	if ran != 5 {
		t.Errorf("expected all pending jobs drained, got %d", ran)
	}
}

func TestEnqueueAfterStopRejected(t *testing.T) {
	q := New(1, 4)
	q.Start()
	q.Stop()

	if q.Enqueue(func() {}) {
		t.Error("expected enqueue after stop to be rejected")
	}
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	q := New(1, 4)
	q.Start()

	q.Enqueue(func() { panic("boom") })

	var wg sync.WaitGroup
	wg.Add(1)
	q.Enqueue(func() { wg.Done() })
	wg.Wait()
	q.Stop()
}
