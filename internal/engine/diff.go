package engine

import "fmt"

// ComputeChanges returns a map of field -> {old, new} for changed
// fields. Updates replace the data map wholesale, so a field present in
// the old data but absent from the new one is a change too.
func ComputeChanges(record, old map[string]any) map[string]any {
	changes := map[string]any{}
	for k, newVal := range record {
		oldVal, exists := old[k]
		if !exists || fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
			changes[k] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for k, oldVal := range old {
		if _, exists := record[k]; !exists {
			changes[k] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}

// Changed reports whether any field value differs between the new and old
// document data. Drives the value-change lifecycle event.
func Changed(record, old map[string]any) bool {
	return len(ComputeChanges(record, old)) > 0
}
