package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return fmt.Sprintf("?%d", index)
}

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string    { return "CURRENT_TIMESTAMP" }
func (d *SQLiteDialect) NeedsBoolFix() bool { return true }

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

// ArrayParam JSON-encodes the slice; SQLite has no array type.
func (d *SQLiteDialect) ArrayParam(values []string) any {
	b, _ := json.Marshal(values)
	return string(b)
}

func (d *SQLiteDialect) ScanArray(src any) ([]string, error) {
	if src == nil {
		return []string{}, nil
	}
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case []string:
		return v, nil
	default:
		return []string{}, nil
	}
	if raw == "" {
		return []string{}, nil
	}
	var result []string
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("scan array: %w", err)
	}
	return result, nil
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- SQLite DDL ---
// UUIDs are generated in application code; timestamps are TEXT.

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _entity_types (
    name        TEXT PRIMARY KEY,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS _records (
    id          TEXT PRIMARY KEY,
    doctype     TEXT NOT NULL REFERENCES _entity_types(name) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    docstatus   INTEGER NOT NULL DEFAULT 0,
    data        TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(doctype, name)
);
CREATE INDEX IF NOT EXISTS idx_records_doctype ON _records(doctype);

CREATE TABLE IF NOT EXISTS _kafka_hooks (
    name          TEXT PRIMARY KEY,
    hook_doctype  TEXT NOT NULL REFERENCES _entity_types(name) ON DELETE CASCADE,
    hook_docevent TEXT NOT NULL,
    enabled       INTEGER NOT NULL DEFAULT 1,
    condition     TEXT DEFAULT '',
    process_data  TEXT NOT NULL DEFAULT 'Template',
    request_json  TEXT DEFAULT '',
    method        TEXT DEFAULT '',
    topic         TEXT NOT NULL,
    settings      TEXT NOT NULL,
    created_at    TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at    TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_kafka_hooks_doctype ON _kafka_hooks(hook_doctype);

CREATE TABLE IF NOT EXISTS _kafka_settings (
    name       TEXT PRIMARY KEY,
    rest_url   TEXT NOT NULL,
    username   TEXT DEFAULT '',
    password   TEXT DEFAULT '',
    created_at TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS _hook_logs (
    id         TEXT PRIMARY KEY,
    topic      TEXT NOT NULL,
    settings   TEXT NOT NULL,
    payload    TEXT,
    response   TEXT DEFAULT '',
    status     TEXT NOT NULL DEFAULT 'delivered',
    created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_hook_logs_created ON _hook_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_hook_logs_status ON _hook_logs(status);

CREATE TABLE IF NOT EXISTS _error_logs (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    trace      TEXT DEFAULT '',
    created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS _users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    roles         TEXT DEFAULT '[]',
    active        INTEGER DEFAULT 1,
    created_at    TEXT DEFAULT CURRENT_TIMESTAMP,
    updated_at    TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// Compile-time check
var _ Dialect = (*SQLiteDialect)(nil)
