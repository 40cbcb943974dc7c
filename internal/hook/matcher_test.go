package hook

import (
	"context"
	"testing"

	"bulkhook-backend/internal/cache"
)

type recordingErrorSink struct {
	titles []string
}

func (s *recordingErrorSink) Log(ctx context.Context, title string, err error) {
	s.titles = append(s.titles, title)
}

func newTestMatcher(summaries ...*Summary) (*Matcher, *fakeLister, *recordingErrorSink) {
	lister := &fakeLister{summaries: summaries}
	errs := &recordingErrorSink{}
	m := NewMatcher(NewRegistryCache(cache.New(), lister), NewDispatcher(nil, nil), errs)
	return m, lister, errs
}

func orderDoc(name string, isNew bool) *Document {
	return &Document{
		Doctype: "Order",
		Name:    name,
		IsNew:   isNew,
		Fields:  map[string]any{"docstatus": 0, "total": 150.0},
	}
}

func TestOnEventSchedulesMatchingHook(t *testing.T) {
	m, _, _ := newTestMatcher(
		&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnUpdate},
		&Summary{Name: "h2", Doctype: "Order", Docevent: EventOnSubmit},
	)
	dc := NewDispatchContext(true)

	if err := m.OnEvent(context.Background(), dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("on event: %v", err)
	}

	pending := dc.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(pending))
	}
	task := pending[0]
	if task.HookName != "h1" || task.DocName != "DOC-1" || task.Doctype != "Order" {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.Doc == nil || task.Doc["name"] != "DOC-1" {
		t.Errorf("task must carry the document view, got %v", task.Doc)
	}
	if !task.FromRequest {
		t.Error("task must inherit the unit-of-work origin")
	}
}

func TestOnEventDedupPerDocument(t *testing.T) {
	m, _, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnUpdate})
	dc := NewDispatchContext(true)
	ctx := context.Background()

	// Same document saved twice within one unit of work.
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(dc.Pending()) != 1 {
		t.Fatalf("expected dedup to one task, got %d", len(dc.Pending()))
	}

	// A different document is not deduped.
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-2", false), EventOnUpdate); err != nil {
		t.Fatalf("other document: %v", err)
	}
	if len(dc.Pending()) != 2 {
		t.Fatalf("expected second document to schedule, got %d tasks", len(dc.Pending()))
	}
}

func TestOnEventValueChangeNotOnInsert(t *testing.T) {
	m, _, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnChange})
	ctx := context.Background()

	dc := NewDispatchContext(true)
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-1", true), EventOnChange); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(dc.Pending()) != 0 {
		t.Error("value-change events must not fire on first save")
	}

	if err := m.OnEvent(ctx, dc, orderDoc("DOC-1", false), EventOnChange); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(dc.Pending()) != 1 {
		t.Error("value-change events must fire on subsequent saves")
	}
}

func TestOnEventFlagsSuppressDispatch(t *testing.T) {
	m, lister, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnUpdate})

	dc := NewDispatchContext(false)
	dc.Flags.BulkImport = true
	if err := m.OnEvent(context.Background(), dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("on event: %v", err)
	}
	if len(dc.Pending()) != 0 {
		t.Error("suppressed unit of work must schedule nothing")
	}
	if lister.calls != 0 {
		t.Error("suppressed unit of work must not touch the registry")
	}
}

func TestOnEventConditionGates(t *testing.T) {
	m, _, _ := newTestMatcher(
		&Summary{Name: "big", Doctype: "Order", Docevent: EventOnUpdate, Condition: `utils.flt(doc.total) > 100`},
		&Summary{Name: "small", Doctype: "Order", Docevent: EventOnUpdate, Condition: `utils.flt(doc.total) <= 100`},
	)
	dc := NewDispatchContext(true)

	if err := m.OnEvent(context.Background(), dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("on event: %v", err)
	}
	pending := dc.Pending()
	if len(pending) != 1 || pending[0].HookName != "big" {
		t.Fatalf("expected only the satisfied condition to schedule, got %+v", pending)
	}
}

func TestOnEventBrokenConditionSkipsOnlyThatHook(t *testing.T) {
	m, _, errs := newTestMatcher(
		&Summary{Name: "broken", Doctype: "Order", Docevent: EventOnUpdate, Condition: `doc.total >`},
		&Summary{Name: "ok", Doctype: "Order", Docevent: EventOnUpdate},
	)
	dc := NewDispatchContext(true)

	if err := m.OnEvent(context.Background(), dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("on event: %v", err)
	}
	pending := dc.Pending()
	if len(pending) != 1 || pending[0].HookName != "ok" {
		t.Fatalf("expected healthy hook to survive a broken sibling, got %+v", pending)
	}
	if len(errs.titles) != 1 || errs.titles[0] != "Kafka hook condition failed: broken" {
		t.Errorf("expected condition failure logged, got %v", errs.titles)
	}
	if !dc.alreadyExecuted("DOC-1", "ok") {
		t.Error("scheduled hook must be marked executed")
	}
	if dc.alreadyExecuted("DOC-1", "broken") {
		t.Error("skipped hook must stay eligible")
	}
}

func TestOnEventMemoizesRegistryPerUnitOfWork(t *testing.T) {
	m, lister, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnUpdate})
	ctx := context.Background()

	dc := NewDispatchContext(true)
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("first event: %v", err)
	}

	// Even after a global invalidation, an in-flight unit of work keeps
	// the snapshot it started with.
	m.registry.Invalidate()
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-2", false), EventOnUpdate); err != nil {
		t.Fatalf("second event: %v", err)
	}
	if lister.calls != 1 {
		t.Errorf("expected registry snapshot reuse within a unit of work, got %d queries", lister.calls)
	}
}

func TestPrimeLoadsRegistryOnceUpFront(t *testing.T) {
	m, lister, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnUpdate})
	ctx := context.Background()

	dc := NewDispatchContext(true)
	if err := m.Prime(ctx, dc); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if lister.calls != 1 {
		t.Fatalf("expected priming to build the registry, got %d queries", lister.calls)
	}

	// Priming again and matching afterwards never go back to the store.
	if err := m.Prime(ctx, dc); err != nil {
		t.Fatalf("second prime: %v", err)
	}
	if err := m.OnEvent(ctx, dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("on event: %v", err)
	}
	if lister.calls != 1 {
		t.Errorf("expected no further store queries after priming, got %d", lister.calls)
	}
	if len(dc.Pending()) != 1 {
		t.Errorf("expected 1 scheduled task, got %d", len(dc.Pending()))
	}
}

func TestPrimeSkipsSuppressedUnits(t *testing.T) {
	m, lister, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Order", Docevent: EventOnUpdate})

	dc := NewDispatchContext(false)
	dc.Flags.Migrate = true
	if err := m.Prime(context.Background(), dc); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if lister.calls != 0 {
		t.Error("suppressed unit of work must not touch the registry")
	}
}

func TestOnEventUnwatchedDoctype(t *testing.T) {
	m, _, _ := newTestMatcher(&Summary{Name: "h1", Doctype: "Invoice", Docevent: EventOnUpdate})
	dc := NewDispatchContext(true)

	if err := m.OnEvent(context.Background(), dc, orderDoc("DOC-1", false), EventOnUpdate); err != nil {
		t.Fatalf("on event: %v", err)
	}
	if len(dc.Pending()) != 0 {
		t.Error("doctype without hooks must schedule nothing")
	}
}
