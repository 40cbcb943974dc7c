package hook

import "context"

// baseEvents apply to every save; updateOnlyEvents additionally apply
// when the document is not newly inserted.
var baseEvents = map[string]bool{
	EventAfterInsert: true,
	EventOnUpdate:    true,
	EventOnSubmit:    true,
	EventOnCancel:    true,
	EventOnTrash:     true,
}

var updateOnlyEvents = map[string]bool{
	EventOnChange:                true,
	EventBeforeUpdateAfterSubmit: true,
}

// Matcher selects the applicable, condition-satisfying, not-yet-executed
// hooks for a lifecycle event and hands them to the dispatcher.
type Matcher struct {
	registry   *RegistryCache
	dispatcher *Dispatcher
	errors     ErrorSink
}

func NewMatcher(registry *RegistryCache, dispatcher *Dispatcher, errors ErrorSink) *Matcher {
	return &Matcher{registry: registry, dispatcher: dispatcher, errors: errors}
}

// Prime memoizes the registry index on the unit of work. Write paths
// call this before opening their transaction: a cold-cache rebuild
// queries the definition store, and with a single-connection database
// (sqlite) that query can never get a connection while the caller's
// transaction holds it.
func (m *Matcher) Prime(ctx context.Context, dc *DispatchContext) error {
	if dc.Flags.Suppressed() || dc.registry != nil {
		return nil
	}
	idx, err := m.registry.Get(ctx)
	if err != nil {
		return err
	}
	dc.registry = idx
	return nil
}

// OnEvent processes one lifecycle event for one document within the
// given unit of work.
func (m *Matcher) OnEvent(ctx context.Context, dc *DispatchContext, doc *Document, event string) error {
	if dc.Flags.Suppressed() {
		return nil
	}

	applicable := baseEvents[event]
	if !applicable && !doc.IsNew {
		// value-change events are not applicable on insert
		applicable = updateOnlyEvents[event]
	}
	if !applicable {
		return nil
	}

	if dc.registry == nil {
		idx, err := m.registry.Get(ctx)
		if err != nil {
			return err
		}
		dc.registry = idx
	}

	hooks := dc.registry[doc.Doctype]
	if len(hooks) == 0 {
		return nil
	}

	var view map[string]any
	for _, h := range hooks {
		if h.Docevent != event {
			continue
		}
		if dc.alreadyExecuted(doc.Name, h.Name) {
			continue
		}

		if view == nil {
			view = doc.View()
		}
		satisfied, err := EvaluateCondition(h, view)
		if err != nil {
			// A broken condition skips this candidate, not the whole pass.
			m.errors.Log(ctx, "Kafka hook condition failed: "+h.Name, err)
			continue
		}
		if !satisfied {
			continue
		}

		m.dispatcher.Schedule(dc, &DispatchTask{
			HookName:    h.Name,
			Doctype:     doc.Doctype,
			DocName:     doc.Name,
			Doc:         view,
			FromRequest: dc.FromRequest,
		})
		dc.markExecuted(doc.Name, h.Name)
	}
	return nil
}
