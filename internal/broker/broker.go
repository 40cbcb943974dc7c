// Package broker is the boundary to the Kafka transport. The dispatch
// core only sees the Sender interface; credentials and wire framing stay
// behind it.
package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"bulkhook-backend/internal/store"
)

// Sender publishes one message to a topic using the named broker
// configuration. It returns the transport's response for the audit trail.
// A nil key leaves partitioning to the broker.
type Sender interface {
	Send(ctx context.Context, configRef, topic, key string, payload any, binaryPayload []byte, structured bool) (string, error)
}

// Settings is one named broker configuration.
type Settings struct {
	Name     string `json:"name"`
	RestURL  string `json:"rest_url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// SettingsStore reads and writes broker configurations.
type SettingsStore struct {
	store *store.Store
}

func NewSettingsStore(s *store.Store) *SettingsStore {
	return &SettingsStore{store: s}
}

func (ss *SettingsStore) Get(ctx context.Context, name string) (*Settings, error) {
	pb := ss.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, ss.store.DB,
		fmt.Sprintf("SELECT name, rest_url, username, password FROM _kafka_settings WHERE name = %s", pb.Add(name)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("get kafka settings %s: %w", name, err)
	}
	return settingsFromRow(row), nil
}

func (ss *SettingsStore) List(ctx context.Context) ([]*Settings, error) {
	rows, err := store.QueryRows(ctx, ss.store.DB,
		"SELECT name, rest_url, username, password FROM _kafka_settings ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list kafka settings: %w", err)
	}
	result := make([]*Settings, 0, len(rows))
	for _, row := range rows {
		result = append(result, settingsFromRow(row))
	}
	return result, nil
}

func (ss *SettingsStore) Save(ctx context.Context, s *Settings) error {
	if s.Name == "" || s.RestURL == "" {
		return fmt.Errorf("kafka settings require name and rest_url")
	}
	pb := ss.store.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, ss.store.DB,
		fmt.Sprintf(`INSERT INTO _kafka_settings (name, rest_url, username, password) VALUES (%s, %s, %s, %s)
		 ON CONFLICT (name) DO UPDATE SET rest_url = %s, username = %s, password = %s, updated_at = %s`,
			pb.Add(s.Name), pb.Add(s.RestURL), pb.Add(s.Username), pb.Add(s.Password),
			pb.Add(s.RestURL), pb.Add(s.Username), pb.Add(s.Password), ss.store.Dialect.NowExpr()),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("save kafka settings %s: %w", s.Name, err)
	}
	return nil
}

func (ss *SettingsStore) Delete(ctx context.Context, name string) error {
	pb := ss.store.Dialect.NewParamBuilder()
	affected, err := store.Exec(ctx, ss.store.DB,
		fmt.Sprintf("DELETE FROM _kafka_settings WHERE name = %s", pb.Add(name)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete kafka settings %s: %w", name, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func settingsFromRow(row map[string]any) *Settings {
	return &Settings{
		Name:     str(row["name"]),
		RestURL:  str(row["rest_url"]),
		Username: str(row["username"]),
		Password: str(row["password"]),
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}
