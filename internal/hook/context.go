package hook

// Flags marks processing modes that suppress dispatch entirely.
type Flags struct {
	BulkImport bool
	Migrate    bool
	Patch      bool
	Install    bool
}

// Suppressed reports whether dispatch is disabled for this unit of work.
func (f Flags) Suppressed() bool {
	return f.BulkImport || f.Migrate || f.Patch || f.Install
}

// Document is the view of a record handed to the matcher. Fields holds
// the full document data including docstatus.
type Document struct {
	Doctype string
	Name    string
	IsNew   bool // first save of this document
	Fields  map[string]any
}

// View returns the map bound to "doc" in conditions and templates.
func (d *Document) View() map[string]any {
	view := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		view[k] = v
	}
	view["name"] = d.Name
	view["doctype"] = d.Doctype
	return view
}

// DispatchContext scopes dedup state and the memoized registry to one
// unit of work (an inbound request or a batch job). It is never shared
// across concurrent units, so it needs no synchronization.
type DispatchContext struct {
	Flags       Flags
	FromRequest bool

	registry RegistryIndex       // memoized for the duration of the unit
	executed map[string][]string // document name -> hook names already executed
	pending  []*DispatchTask     // scheduled, waiting for commit
}

func NewDispatchContext(fromRequest bool) *DispatchContext {
	return &DispatchContext{
		FromRequest: fromRequest,
		executed:    make(map[string][]string),
	}
}

// Dedup is keyed by document identity, not (document, event): a hook
// fires at most once per document within one unit of work.
func (dc *DispatchContext) alreadyExecuted(docName, hookName string) bool {
	for _, n := range dc.executed[docName] {
		if n == hookName {
			return true
		}
	}
	return false
}

func (dc *DispatchContext) markExecuted(docName, hookName string) {
	dc.executed[docName] = append(dc.executed[docName], hookName)
}

// Pending returns tasks scheduled but not yet flushed.
func (dc *DispatchContext) Pending() []*DispatchTask {
	return dc.pending
}
