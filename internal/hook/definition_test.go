package hook

import (
	"errors"
	"testing"

	"bulkhook-backend/internal/metadata"
)

func testTypes() *metadata.Registry {
	r := metadata.NewRegistry()
	r.Load([]*metadata.EntityType{
		{
			Name:        "Order",
			Submittable: true,
			Fields: []metadata.Field{
				{Name: "total", Type: "float"},
				{Name: "status", Type: "string", Default: "Draft"},
			},
		},
		{
			Name:   "Note",
			Fields: []metadata.Field{{Name: "body", Type: "string"}},
		},
	})
	return r
}

func validHook() *KafkaHook {
	return &KafkaHook{
		Name:         "order-created",
		HookDoctype:  "Order",
		HookDocevent: EventAfterInsert,
		Enabled:      true,
		ProcessData:  ProcessTemplate,
		RequestJSON:  `{"id": "{{ doc.name }}"}`,
		Topic:        "orders",
		Settings:     "prod-cluster",
	}
}

func expectInvalid(t *testing.T, h *KafkaHook, producers *ProducerRegistry) {
	t.Helper()
	err := h.Validate(testTypes(), producers)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestValidateAcceptsCompleteDefinition(t *testing.T) {
	if err := validHook().Validate(testTypes(), NewProducerRegistry()); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	producers := NewProducerRegistry()

	h := validHook()
	h.Name = ""
	expectInvalid(t, h, producers)

	h = validHook()
	h.Topic = ""
	expectInvalid(t, h, producers)

	h = validHook()
	h.Settings = ""
	expectInvalid(t, h, producers)
}

func TestValidateUnknownDoctypeAndEvent(t *testing.T) {
	producers := NewProducerRegistry()

	h := validHook()
	h.HookDoctype = "Ghost"
	expectInvalid(t, h, producers)

	h = validHook()
	h.HookDocevent = "on_save"
	expectInvalid(t, h, producers)
}

func TestValidateSubmittableGating(t *testing.T) {
	producers := NewProducerRegistry()

	// Submit-lifecycle events on a submittable type are fine.
	h := validHook()
	h.HookDocevent = EventOnSubmit
	if err := h.Validate(testTypes(), producers); err != nil {
		t.Fatalf("on_submit on submittable type rejected: %v", err)
	}

	// The same events on a plain type are not.
	for _, event := range []string{EventOnSubmit, EventOnCancel, EventBeforeUpdateAfterSubmit} {
		h := validHook()
		h.HookDoctype = "Note"
		h.HookDocevent = event
		expectInvalid(t, h, producers)
	}

	// Plain events on a plain type stay allowed.
	h = validHook()
	h.HookDoctype = "Note"
	h.HookDocevent = EventOnUpdate
	if err := h.Validate(testTypes(), producers); err != nil {
		t.Fatalf("on_update on plain type rejected: %v", err)
	}
}

func TestValidateConditionAgainstEmptyDoc(t *testing.T) {
	producers := NewProducerRegistry()

	h := validHook()
	h.Condition = `utils.flt(doc.total) > 100 && doc.status == "Submitted"`
	if err := h.Validate(testTypes(), producers); err != nil {
		t.Fatalf("valid condition rejected: %v", err)
	}

	h = validHook()
	h.Condition = `doc.total >`
	expectInvalid(t, h, producers)
}

func TestValidateTemplateMode(t *testing.T) {
	producers := NewProducerRegistry()

	h := validHook()
	h.RequestJSON = ""
	expectInvalid(t, h, producers)

	h = validHook()
	h.RequestJSON = `{{ if doc.total }}`
	expectInvalid(t, h, producers)
}

func TestValidateMethodMode(t *testing.T) {
	producers := NewProducerRegistry()
	producers.Register("orders.export", &staticProducer{result: &ProducerResult{}})

	h := validHook()
	h.ProcessData = ProcessMethod
	h.RequestJSON = ""
	h.Method = "orders.export"
	if err := h.Validate(testTypes(), producers); err != nil {
		t.Fatalf("valid method definition rejected: %v", err)
	}

	h.Method = "missing.producer"
	expectInvalid(t, h, producers)

	h.Method = ""
	expectInvalid(t, h, producers)

	h.ProcessData = "Webhook"
	expectInvalid(t, h, producers)
}
