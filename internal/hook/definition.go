// Package hook implements the Kafka dispatch core: hook definitions, the
// cached registry grouped by entity type, event matching with per-request
// dedup, payload building, and asynchronous publication with an audit
// trail.
package hook

import (
	"context"
	"errors"
	"fmt"

	"bulkhook-backend/internal/metadata"
	"bulkhook-backend/internal/store"
)

// Document lifecycle events a hook can subscribe to.
const (
	EventAfterInsert             = "after_insert"
	EventOnUpdate                = "on_update"
	EventOnChange                = "on_change"
	EventOnSubmit                = "on_submit"
	EventOnCancel                = "on_cancel"
	EventBeforeUpdateAfterSubmit = "before_update_after_submit"
	EventOnTrash                 = "on_trash"
)

// Payload modes.
const (
	ProcessTemplate = "Template"
	ProcessMethod   = "Method"
)

// ErrInvalidDefinition marks a hook definition rejected at save time.
var ErrInvalidDefinition = errors.New("invalid kafka hook definition")

var validEvents = map[string]bool{
	EventAfterInsert:             true,
	EventOnUpdate:                true,
	EventOnChange:                true,
	EventOnSubmit:                true,
	EventOnCancel:                true,
	EventBeforeUpdateAfterSubmit: true,
	EventOnTrash:                 true,
}

// submittableEvents only make sense for entity types with a docstatus
// lifecycle.
var submittableEvents = map[string]bool{
	EventOnSubmit:                true,
	EventOnCancel:                true,
	EventBeforeUpdateAfterSubmit: true,
}

// KafkaHook is a stored rule mapping an entity-type lifecycle event to a
// Kafka publication.
type KafkaHook struct {
	Name         string `json:"name"`
	HookDoctype  string `json:"hook_doctype"`
	HookDocevent string `json:"hook_docevent"`
	Enabled      bool   `json:"enabled"`
	Condition    string `json:"condition"`
	ProcessData  string `json:"process_data"` // Template or Method
	RequestJSON  string `json:"request_json"` // template body (Template mode)
	Method       string `json:"method"`       // payload producer name (Method mode)
	Topic        string `json:"topic"`
	Settings     string `json:"settings"` // broker config reference
}

// Validate checks a definition against the entity-type registry and the
// producer registry. Rejections block persistence.
func (h *KafkaHook) Validate(types *metadata.Registry, producers *ProducerRegistry) error {
	if h.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if h.Topic == "" || h.Settings == "" {
		return fmt.Errorf("%w: topic and settings are required", ErrInvalidDefinition)
	}
	et := types.Get(h.HookDoctype)
	if et == nil {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidDefinition, h.HookDoctype)
	}
	if !validEvents[h.HookDocevent] {
		return fmt.Errorf("%w: unknown doc event %q", ErrInvalidDefinition, h.HookDocevent)
	}
	if submittableEvents[h.HookDocevent] && !et.Submittable {
		return fmt.Errorf("%w: entity type must be submittable for doc event %s", ErrInvalidDefinition, h.HookDocevent)
	}

	if h.Condition != "" {
		// Type-check against an empty instance of the target type.
		if err := ValidateCondition(h.Condition, et.NewDoc()); err != nil {
			return fmt.Errorf("%w: condition: %v", ErrInvalidDefinition, err)
		}
	}

	switch h.ProcessData {
	case ProcessTemplate:
		if h.RequestJSON == "" {
			return fmt.Errorf("%w: request_json is required in Template mode", ErrInvalidDefinition)
		}
		if err := ValidateTemplate(h.RequestJSON); err != nil {
			return fmt.Errorf("%w: request_json: %v", ErrInvalidDefinition, err)
		}
	case ProcessMethod:
		if h.Method == "" {
			return fmt.Errorf("%w: method is required in Method mode", ErrInvalidDefinition)
		}
		if !producers.Has(h.Method) {
			return fmt.Errorf("%w: unknown payload producer %q", ErrInvalidDefinition, h.Method)
		}
	default:
		return fmt.Errorf("%w: process_data must be Template or Method", ErrInvalidDefinition)
	}
	return nil
}

// DefinitionStore persists hook definitions. Every write invalidates the
// registry cache through the onWrite callback.
type DefinitionStore struct {
	store     *store.Store
	types     *metadata.Registry
	producers *ProducerRegistry
	onWrite   func()
}

func NewDefinitionStore(s *store.Store, types *metadata.Registry, producers *ProducerRegistry) *DefinitionStore {
	return &DefinitionStore{store: s, types: types, producers: producers}
}

// OnWrite registers the invalidation callback fired after every
// create/update/delete.
func (ds *DefinitionStore) OnWrite(fn func()) {
	ds.onWrite = fn
}

func (ds *DefinitionStore) notifyWrite() {
	if ds.onWrite != nil {
		ds.onWrite()
	}
}

const hookColumns = "name, hook_doctype, hook_docevent, enabled, condition, process_data, request_json, method, topic, settings"

// Get returns the full definition by name.
func (ds *DefinitionStore) Get(ctx context.Context, name string) (*KafkaHook, error) {
	pb := ds.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, ds.store.DB,
		fmt.Sprintf("SELECT %s FROM _kafka_hooks WHERE name = %s", hookColumns, pb.Add(name)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("get kafka hook %s: %w", name, err)
	}
	return hookFromRow(row), nil
}

// List returns all definitions.
func (ds *DefinitionStore) List(ctx context.Context) ([]*KafkaHook, error) {
	rows, err := store.QueryRows(ctx, ds.store.DB,
		fmt.Sprintf("SELECT %s FROM _kafka_hooks ORDER BY created_at, name", hookColumns))
	if err != nil {
		return nil, fmt.Errorf("list kafka hooks: %w", err)
	}
	hooks := make([]*KafkaHook, 0, len(rows))
	for _, row := range rows {
		hooks = append(hooks, hookFromRow(row))
	}
	return hooks, nil
}

// ListEnabledSummaries projects the fields needed for matching from all
// enabled definitions, in stable store order.
func (ds *DefinitionStore) ListEnabledSummaries(ctx context.Context) ([]*Summary, error) {
	pb := ds.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, ds.store.DB,
		fmt.Sprintf(`SELECT name, condition, hook_docevent, hook_doctype FROM _kafka_hooks
		 WHERE enabled = %s ORDER BY created_at, name`, pb.Add(true)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list enabled kafka hooks: %w", err)
	}
	summaries := make([]*Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, &Summary{
			Name:      str(row["name"]),
			Condition: str(row["condition"]),
			Docevent:  str(row["hook_docevent"]),
			Doctype:   str(row["hook_doctype"]),
		})
	}
	return summaries, nil
}

// Save validates and upserts a definition, then invalidates the registry.
func (ds *DefinitionStore) Save(ctx context.Context, h *KafkaHook) error {
	if err := h.Validate(ds.types, ds.producers); err != nil {
		return err
	}

	pb := ds.store.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, ds.store.DB,
		fmt.Sprintf(`INSERT INTO _kafka_hooks (%s) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		 ON CONFLICT (name) DO UPDATE SET
		   hook_doctype = %s, hook_docevent = %s, enabled = %s, condition = %s, process_data = %s,
		   request_json = %s, method = %s, topic = %s, settings = %s, updated_at = %s`,
			hookColumns,
			pb.Add(h.Name), pb.Add(h.HookDoctype), pb.Add(h.HookDocevent), pb.Add(h.Enabled),
			pb.Add(h.Condition), pb.Add(h.ProcessData), pb.Add(h.RequestJSON), pb.Add(h.Method),
			pb.Add(h.Topic), pb.Add(h.Settings),
			pb.Add(h.HookDoctype), pb.Add(h.HookDocevent), pb.Add(h.Enabled), pb.Add(h.Condition),
			pb.Add(h.ProcessData), pb.Add(h.RequestJSON), pb.Add(h.Method), pb.Add(h.Topic),
			pb.Add(h.Settings), ds.store.Dialect.NowExpr()),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("save kafka hook %s: %w", h.Name, store.MapError(ds.store.Dialect, err))
	}

	ds.notifyWrite()
	return nil
}

// Delete removes a definition, then invalidates the registry.
func (ds *DefinitionStore) Delete(ctx context.Context, name string) error {
	pb := ds.store.Dialect.NewParamBuilder()
	affected, err := store.Exec(ctx, ds.store.DB,
		fmt.Sprintf("DELETE FROM _kafka_hooks WHERE name = %s", pb.Add(name)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete kafka hook %s: %w", name, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	ds.notifyWrite()
	return nil
}

func hookFromRow(row map[string]any) *KafkaHook {
	return &KafkaHook{
		Name:         str(row["name"]),
		HookDoctype:  str(row["hook_doctype"]),
		HookDocevent: str(row["hook_docevent"]),
		Enabled:      boolVal(row["enabled"]),
		Condition:    str(row["condition"]),
		ProcessData:  str(row["process_data"]),
		RequestJSON:  str(row["request_json"]),
		Method:       str(row["method"]),
		Topic:        str(row["topic"]),
		Settings:     str(row["settings"]),
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func boolVal(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}
