package cache

import (
	"errors"
	"testing"
)

func TestGetOrComputeMemoizes(t *testing.T) {
	c := New()
	calls := 0
	compute := func() (any, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", compute)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if v != "value" {
			t.Fatalf("expected value, got %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 compute call, got %d", calls)
	}
}

func TestEvictForcesRecompute(t *testing.T) {
	c := New()
	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	if _, err := c.GetOrCompute("k", compute); err != nil {
		t.Fatalf("get: %v", err)
	}
	c.Evict("k")
	v, err := c.GetOrCompute("k", compute)
	if err != nil {
		t.Fatalf("get after evict: %v", err)
	}
	if v != 2 {
		t.Errorf("expected recompute to run, got %v", v)
	}
}

func TestComputeErrorNotCached(t *testing.T) {
	c := New()
	calls := 0
	boom := errors.New("boom")

	_, err := c.GetOrCompute("k", func() (any, error) {
		calls++
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	v, err := c.GetOrCompute("k", func() (any, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %v", v)
	}
	if calls != 2 {
		t.Errorf("expected 2 compute calls, got %d", calls)
	}
}

func TestEvictUnknownKeyIsNoop(t *testing.T) {
	c := New()
	c.Evict("missing")
}
