package metadata

// Field describes one field of an entity type.
type Field struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // string, int, float, boolean, date, timestamp, json
	Default any    `json:"default,omitempty"`
}

// EntityType describes a record type managed by the engine.
// Submittable types carry a docstatus lifecycle (draft -> submitted -> cancelled).
type EntityType struct {
	Name        string  `json:"name"`
	Label       string  `json:"label"`
	Submittable bool    `json:"submittable"`
	Fields      []Field `json:"fields"`
}

// NewDoc builds an empty document view for this entity type, with every
// field at its default (or zero) value. Used to type-check hook conditions
// at save time without touching stored records.
func (e *EntityType) NewDoc() map[string]any {
	doc := map[string]any{
		"name":      "",
		"doctype":   e.Name,
		"docstatus": 0,
	}
	for _, f := range e.Fields {
		if f.Default != nil {
			doc[f.Name] = f.Default
			continue
		}
		doc[f.Name] = zeroValue(f.Type)
	}
	return doc
}

func zeroValue(fieldType string) any {
	switch fieldType {
	case "int":
		return 0
	case "float":
		return 0.0
	case "boolean":
		return false
	case "json":
		return map[string]any{}
	default:
		return ""
	}
}
