package metadata

import "testing"

func TestNewDocDefaults(t *testing.T) {
	et := &EntityType{
		Name:        "Sales Order",
		Submittable: true,
		Fields: []Field{
			{Name: "customer", Type: "string"},
			{Name: "total", Type: "float"},
			{Name: "qty", Type: "int"},
			{Name: "urgent", Type: "boolean"},
			{Name: "status", Type: "string", Default: "Draft"},
		},
	}

	doc := et.NewDoc()
	if doc["doctype"] != "Sales Order" {
		t.Errorf("expected doctype=Sales Order, got %v", doc["doctype"])
	}
	if doc["docstatus"] != 0 {
		t.Errorf("expected docstatus=0, got %v", doc["docstatus"])
	}
	if doc["customer"] != "" {
		t.Errorf("expected empty customer, got %v", doc["customer"])
	}
	if doc["total"] != 0.0 {
		t.Errorf("expected total=0, got %v", doc["total"])
	}
	if doc["qty"] != 0 {
		t.Errorf("expected qty=0, got %v", doc["qty"])
	}
	if doc["urgent"] != false {
		t.Errorf("expected urgent=false, got %v", doc["urgent"])
	}
	if doc["status"] != "Draft" {
		t.Errorf("expected default status=Draft, got %v", doc["status"])
	}
}

func TestRegistryLoadReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Load([]*EntityType{{Name: "A"}, {Name: "B"}})
	if reg.Get("A") == nil || reg.Get("B") == nil {
		t.Fatal("expected A and B registered")
	}

	reg.Load([]*EntityType{{Name: "C"}})
	if reg.Get("A") != nil {
		t.Error("expected A gone after reload")
	}
	if reg.Get("C") == nil {
		t.Error("expected C registered")
	}
	if len(reg.All()) != 1 {
		t.Errorf("expected 1 type, got %d", len(reg.All()))
	}
}
