package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"bulkhook-backend/internal/store"
)

// Audit statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// AuditLog appends publication outcomes to _hook_logs. Append-only; a
// failed insert is logged but never interrupts dispatch.
type AuditLog struct {
	store *store.Store
}

func NewAuditLog(s *store.Store) *AuditLog {
	return &AuditLog{store: s}
}

func (a *AuditLog) Record(ctx context.Context, topic, configRef string, payload any, response, status string) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		payloadJSON = []byte("null")
	}

	pb := a.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, a.store.DB,
		fmt.Sprintf(`INSERT INTO _hook_logs (id, topic, settings, payload, response, status)
		 VALUES (%s, %s, %s, %s, %s, %s)`,
			pb.Add(store.GenerateUUID()), pb.Add(topic), pb.Add(configRef),
			pb.Add(string(payloadJSON)), pb.Add(response), pb.Add(status)),
		pb.Params()...)
	if err != nil {
		log.Printf("ERROR: failed to write hook log for topic %s: %v", topic, err)
	}
}

// List returns the most recent audit entries.
func (a *AuditLog) List(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	pb := a.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, a.store.DB,
		fmt.Sprintf(`SELECT id, topic, settings, payload, response, status, created_at
		 FROM _hook_logs ORDER BY created_at DESC LIMIT %s`, pb.Add(limit)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list hook logs: %w", err)
	}
	return rows, nil
}

// ErrorLog writes failures to the server log and _error_logs with an
// execution trace.
type ErrorLog struct {
	store *store.Store
}

func NewErrorLog(s *store.Store) *ErrorLog {
	return &ErrorLog{store: s}
}

func (e *ErrorLog) Log(ctx context.Context, title string, cause error) {
	log.Printf("ERROR: %s: %v", title, cause)

	// Insert off the caller's goroutine: matching logs from inside an
	// open transaction, and with a single-connection database the
	// insert cannot get a connection until that transaction ends.
	trace := fmt.Sprintf("%v\n%s", cause, debug.Stack())
	go e.insert(title, trace)
}

func (e *ErrorLog) insert(title, trace string) {
	pb := e.store.Dialect.NewParamBuilder()
	_, err := store.Exec(context.Background(), e.store.DB,
		fmt.Sprintf("INSERT INTO _error_logs (id, title, trace) VALUES (%s, %s, %s)",
			pb.Add(store.GenerateUUID()), pb.Add(title), pb.Add(trace)),
		pb.Params()...)
	if err != nil {
		log.Printf("ERROR: failed to write error log %q: %v", title, err)
	}
}

// Compile-time checks
var _ AuditSink = (*AuditLog)(nil)
var _ ErrorSink = (*ErrorLog)(nil)
