package engine

import "testing"

func TestComputeChanges(t *testing.T) {
	old := map[string]any{"status": "Draft", "total": 100.0}
	record := map[string]any{"status": "Submitted", "total": 100.0, "notes": "rush"}

	changes := ComputeChanges(record, old)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %v", len(changes), changes)
	}
	if _, ok := changes["status"]; !ok {
		t.Error("expected status change")
	}
	if _, ok := changes["notes"]; !ok {
		t.Error("expected new field to count as a change")
	}
	if _, ok := changes["total"]; ok {
		t.Error("unchanged field must not appear")
	}
}

func TestComputeChangesDetectsRemovedFields(t *testing.T) {
	old := map[string]any{"total": 10, "status": "Hot"}
	record := map[string]any{"total": 10}

	changes := ComputeChanges(record, old)
	removed, ok := changes["status"].(map[string]any)
	if !ok {
		t.Fatalf("expected removed field to be reported, got %v", changes)
	}
	if removed["old"] != "Hot" || removed["new"] != nil {
		t.Errorf("unexpected removal entry: %v", removed)
	}

	if !Changed(record, old) {
		t.Error("removing a field is a change")
	}
}

func TestChanged(t *testing.T) {
	same := map[string]any{"total": 100.0}
	if Changed(same, map[string]any{"total": 100.0}) {
		t.Error("identical data must not report a change")
	}
	// Numeric values compare by rendered form, not type.
	if Changed(map[string]any{"total": 100}, map[string]any{"total": int64(100)}) {
		t.Error("equal values of different integer types must not report a change")
	}
	if !Changed(map[string]any{"total": 101}, map[string]any{"total": 100}) {
		t.Error("expected change to be reported")
	}
}
