package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bulkhook-backend/internal/hook"
	"bulkhook-backend/internal/metadata"
	"bulkhook-backend/internal/store"
)

// Docstatus values for submittable entity types.
const (
	StatusDraft     = 0
	StatusSubmitted = 1
	StatusCancelled = 2
)

// Service owns the record store. Every write runs in its own transaction,
// fires lifecycle events through the matcher while the transaction is
// open, and flushes matched dispatch tasks only after a successful
// commit.
type Service struct {
	store      *store.Store
	types      *metadata.Registry
	matcher    *hook.Matcher
	dispatcher *hook.Dispatcher
}

func NewService(s *store.Store, types *metadata.Registry, matcher *hook.Matcher, dispatcher *hook.Dispatcher) *Service {
	return &Service{store: s, types: types, matcher: matcher, dispatcher: dispatcher}
}

// Record is a stored document.
type Record struct {
	Doctype   string         `json:"doctype"`
	Name      string         `json:"name"`
	Docstatus int            `json:"docstatus"`
	Data      map[string]any `json:"data"`
	Creation  time.Time      `json:"creation,omitzero"`
	Modified  time.Time      `json:"modified,omitzero"`
}

// view builds the document map handed to conditions and templates.
func (r *Record) view() map[string]any {
	fields := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		fields[k] = v
	}
	fields["docstatus"] = r.Docstatus
	if !r.Creation.IsZero() {
		fields["creation"] = r.Creation
	}
	if !r.Modified.IsZero() {
		fields["modified"] = r.Modified
	}
	return fields
}

func (r *Record) document(isNew bool) *hook.Document {
	return &hook.Document{
		Doctype: r.Doctype,
		Name:    r.Name,
		IsNew:   isNew,
		Fields:  r.view(),
	}
}

// Create inserts a new document and fires after_insert followed by
// on_update, the two events of a first save.
func (s *Service) Create(ctx context.Context, dc *hook.DispatchContext, doctype string, data map[string]any) (*Record, error) {
	et := s.types.Get(doctype)
	if et == nil {
		return nil, UnknownEntityError(doctype)
	}

	name, _ := data["name"].(string)
	if name == "" {
		name = store.GenerateUUID()
	}
	delete(data, "name")

	rec := &Record{Doctype: doctype, Name: name, Docstatus: StatusDraft, Data: data}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}

	if err := s.matcher.Prime(ctx, dc); err != nil {
		return nil, fmt.Errorf("load hook registry: %w", err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pb := s.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, tx,
		fmt.Sprintf("INSERT INTO _records (id, doctype, name, docstatus, data) VALUES (%s, %s, %s, %s, %s)",
			pb.Add(store.GenerateUUID()), pb.Add(doctype), pb.Add(name), pb.Add(StatusDraft), pb.Add(string(dataJSON))),
		pb.Params()...)
	if err != nil {
		s.dispatcher.Discard(dc)
		return nil, mapWriteError(s.store.Dialect, err)
	}

	if err := s.fireEvents(ctx, dc, rec.document(true), hook.EventAfterInsert, hook.EventOnUpdate); err != nil {
		s.dispatcher.Discard(dc)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.dispatcher.Discard(dc)
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.dispatcher.Flush(dc)
	return rec, nil
}

// Update replaces a document's data. Draft documents fire on_update;
// submitted documents fire before_update_after_submit. Either path also
// fires on_change when the stored data actually changed.
func (s *Service) Update(ctx context.Context, dc *hook.DispatchContext, doctype, name string, data map[string]any) (*Record, error) {
	old, err := s.Get(ctx, doctype, name)
	if err != nil {
		return nil, err
	}
	if old.Docstatus == StatusCancelled {
		return nil, ValidationError("cannot update a cancelled document")
	}

	delete(data, "name")
	rec := &Record{Doctype: doctype, Name: name, Docstatus: old.Docstatus, Data: data}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}

	if err := s.matcher.Prime(ctx, dc); err != nil {
		return nil, fmt.Errorf("load hook registry: %w", err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pb := s.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, tx,
		fmt.Sprintf("UPDATE _records SET data = %s, updated_at = %s WHERE doctype = %s AND name = %s",
			pb.Add(string(dataJSON)), s.store.Dialect.NowExpr(), pb.Add(doctype), pb.Add(name)),
		pb.Params()...)
	if err != nil {
		s.dispatcher.Discard(dc)
		return nil, mapWriteError(s.store.Dialect, err)
	}

	saveEvent := hook.EventOnUpdate
	if old.Docstatus == StatusSubmitted {
		saveEvent = hook.EventBeforeUpdateAfterSubmit
	}
	events := []string{saveEvent}
	if Changed(data, old.Data) {
		events = append(events, hook.EventOnChange)
	}

	if err := s.fireEvents(ctx, dc, rec.document(false), events...); err != nil {
		s.dispatcher.Discard(dc)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.dispatcher.Discard(dc)
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.dispatcher.Flush(dc)
	return rec, nil
}

// Submit moves a draft document to submitted and fires on_submit.
func (s *Service) Submit(ctx context.Context, dc *hook.DispatchContext, doctype, name string) (*Record, error) {
	return s.transition(ctx, dc, doctype, name, StatusDraft, StatusSubmitted, hook.EventOnSubmit)
}

// Cancel moves a submitted document to cancelled and fires on_cancel.
func (s *Service) Cancel(ctx context.Context, dc *hook.DispatchContext, doctype, name string) (*Record, error) {
	return s.transition(ctx, dc, doctype, name, StatusSubmitted, StatusCancelled, hook.EventOnCancel)
}

func (s *Service) transition(ctx context.Context, dc *hook.DispatchContext, doctype, name string, from, to int, event string) (*Record, error) {
	et := s.types.Get(doctype)
	if et == nil {
		return nil, UnknownEntityError(doctype)
	}
	if !et.Submittable {
		return nil, ValidationError(fmt.Sprintf("%s is not submittable", doctype))
	}

	rec, err := s.Get(ctx, doctype, name)
	if err != nil {
		return nil, err
	}
	if rec.Docstatus != from {
		return nil, ValidationError(fmt.Sprintf("invalid docstatus %d for %s", rec.Docstatus, event))
	}
	rec.Docstatus = to

	if err := s.matcher.Prime(ctx, dc); err != nil {
		return nil, fmt.Errorf("load hook registry: %w", err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pb := s.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, tx,
		fmt.Sprintf("UPDATE _records SET docstatus = %s, updated_at = %s WHERE doctype = %s AND name = %s",
			pb.Add(to), s.store.Dialect.NowExpr(), pb.Add(doctype), pb.Add(name)),
		pb.Params()...)
	if err != nil {
		s.dispatcher.Discard(dc)
		return nil, mapWriteError(s.store.Dialect, err)
	}

	if err := s.fireEvents(ctx, dc, rec.document(false), event); err != nil {
		s.dispatcher.Discard(dc)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.dispatcher.Discard(dc)
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.dispatcher.Flush(dc)
	return rec, nil
}

// Delete removes a document and fires on_trash with the last snapshot.
func (s *Service) Delete(ctx context.Context, dc *hook.DispatchContext, doctype, name string) error {
	rec, err := s.Get(ctx, doctype, name)
	if err != nil {
		return err
	}

	if err := s.matcher.Prime(ctx, dc); err != nil {
		return fmt.Errorf("load hook registry: %w", err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	pb := s.store.Dialect.NewParamBuilder()
	affected, err := store.Exec(ctx, tx,
		fmt.Sprintf("DELETE FROM _records WHERE doctype = %s AND name = %s", pb.Add(doctype), pb.Add(name)),
		pb.Params()...)
	if err != nil {
		s.dispatcher.Discard(dc)
		return mapWriteError(s.store.Dialect, err)
	}
	if affected == 0 {
		s.dispatcher.Discard(dc)
		return NotFoundError(doctype, name)
	}

	if err := s.fireEvents(ctx, dc, rec.document(false), hook.EventOnTrash); err != nil {
		s.dispatcher.Discard(dc)
		return err
	}

	if err := tx.Commit(); err != nil {
		s.dispatcher.Discard(dc)
		return fmt.Errorf("commit: %w", err)
	}
	s.dispatcher.Flush(dc)
	return nil
}

// Import bulk-inserts documents with dispatch suppressed.
func (s *Service) Import(ctx context.Context, doctype string, docs []map[string]any) (int, error) {
	dc := hook.NewDispatchContext(false)
	dc.Flags.BulkImport = true

	count := 0
	for _, data := range docs {
		if _, err := s.Create(ctx, dc, doctype, data); err != nil {
			return count, fmt.Errorf("import row %d: %w", count, err)
		}
		count++
	}
	return count, nil
}

// Get loads one document.
func (s *Service) Get(ctx context.Context, doctype, name string) (*Record, error) {
	pb := s.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.store.DB,
		fmt.Sprintf("SELECT doctype, name, docstatus, data, created_at, updated_at FROM _records WHERE doctype = %s AND name = %s",
			pb.Add(doctype), pb.Add(name)),
		pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(doctype, name)
		}
		return nil, fmt.Errorf("get %s/%s: %w", doctype, name, err)
	}
	return recordFromRow(row)
}

// List returns all documents of a type.
func (s *Service) List(ctx context.Context, doctype string) ([]*Record, error) {
	if s.types.Get(doctype) == nil {
		return nil, UnknownEntityError(doctype)
	}
	pb := s.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, s.store.DB,
		fmt.Sprintf("SELECT doctype, name, docstatus, data, created_at, updated_at FROM _records WHERE doctype = %s ORDER BY created_at",
			pb.Add(doctype)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", doctype, err)
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Service) fireEvents(ctx context.Context, dc *hook.DispatchContext, doc *hook.Document, events ...string) error {
	for _, event := range events {
		if err := s.matcher.OnEvent(ctx, dc, doc, event); err != nil {
			return fmt.Errorf("match %s: %w", event, err)
		}
	}
	return nil
}

// ResolveDoc adapts the record store to the publisher's document
// resolver: batch tasks carry only an identity and re-read here.
func ResolveDoc(s *store.Store) hook.DocResolver {
	return func(ctx context.Context, doctype, name string) (map[string]any, error) {
		pb := s.Dialect.NewParamBuilder()
		row, err := store.QueryRow(ctx, s.DB,
			fmt.Sprintf("SELECT doctype, name, docstatus, data, created_at, updated_at FROM _records WHERE doctype = %s AND name = %s",
				pb.Add(doctype), pb.Add(name)),
			pb.Params()...)
		if err != nil {
			return nil, fmt.Errorf("resolve %s/%s: %w", doctype, name, err)
		}
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		return rec.document(false).View(), nil
	}
}

func recordFromRow(row map[string]any) (*Record, error) {
	rec := &Record{
		Doctype: fmt.Sprintf("%v", row["doctype"]),
		Name:    fmt.Sprintf("%v", row["name"]),
	}
	switch v := row["docstatus"].(type) {
	case int64:
		rec.Docstatus = int(v)
	case float64:
		rec.Docstatus = int(v)
	case int:
		rec.Docstatus = v
	}
	if t, ok := row["created_at"].(time.Time); ok {
		rec.Creation = t
	}
	if t, ok := row["updated_at"].(time.Time); ok {
		rec.Modified = t
	}

	raw := ""
	switch v := row["data"].(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	}
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
		return nil, fmt.Errorf("unmarshal record data for %s/%s: %w", rec.Doctype, rec.Name, err)
	}
	return rec, nil
}

func mapWriteError(dialect store.Dialect, err error) error {
	mapped := store.MapError(dialect, err)
	if errors.Is(mapped, store.ErrUniqueViolation) {
		return ConflictError("a record with this name already exists")
	}
	return mapped
}
