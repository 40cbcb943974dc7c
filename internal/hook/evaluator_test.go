package hook

import (
	"strings"
	"testing"
)

func TestEvaluateConditionEmptyAlwaysTrue(t *testing.T) {
	s := &Summary{Name: "hook-1"}
	ok, err := EvaluateCondition(s, map[string]any{"status": "Draft"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("empty condition should be satisfied")
	}
}

func TestEvaluateCondition(t *testing.T) {
	s := &Summary{Name: "hook-1", Condition: `doc.docstatus == 1`}

	ok, err := EvaluateCondition(s, map[string]any{"docstatus": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected condition to pass for docstatus 1")
	}

	ok, err = EvaluateCondition(s, map[string]any{"docstatus": 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected condition to fail for docstatus 0")
	}
}

func TestEvaluateConditionUtils(t *testing.T) {
	s := &Summary{Name: "hook-1", Condition: `utils.flt(doc.total) > 99.5`}
	ok, err := EvaluateCondition(s, map[string]any{"total": "100.5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected flt coercion of string total to satisfy condition")
	}
}

func TestEvaluateConditionCompileError(t *testing.T) {
	s := &Summary{Name: "hook-1", Condition: `doc.status ==`}
	if _, err := EvaluateCondition(s, map[string]any{"status": "x"}); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestEvaluateConditionNonBool(t *testing.T) {
	s := &Summary{Name: "hook-1", Condition: `doc.status`}
	if _, err := EvaluateCondition(s, map[string]any{"status": "Active"}); err == nil {
		t.Fatal("expected error for non-boolean condition result")
	}
}

func TestEvaluateConditionCachesProgram(t *testing.T) {
	s := &Summary{Name: "hook-1", Condition: `doc.qty > 5`}
	if _, err := EvaluateCondition(s, map[string]any{"qty": 10}); err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if s.prog == nil {
		t.Fatal("expected compiled program to be cached on the summary")
	}
	first := s.prog
	if _, err := EvaluateCondition(s, map[string]any{"qty": 3}); err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if s.prog != first {
		t.Error("expected cached program to be reused")
	}
}

func TestValidateCondition(t *testing.T) {
	doc := map[string]any{"name": "", "doctype": "Order", "docstatus": 0, "total": 0.0}

	if err := ValidateCondition(`doc.total > 100`, doc); err != nil {
		t.Errorf("valid condition rejected: %v", err)
	}
	err := ValidateCondition(`doc.total >`, doc)
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(err.Error(), "compile") {
		t.Errorf("expected compile error, got %v", err)
	}
}
