package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"bulkhook-backend/internal/store"
)

// LoadAll reads all entity types from the database and populates the registry.
func LoadAll(ctx context.Context, s *store.Store, reg *Registry) error {
	rows, err := store.QueryRows(ctx, s.DB, "SELECT name, definition FROM _entity_types ORDER BY name")
	if err != nil {
		return fmt.Errorf("load entity types: %w", err)
	}

	var types []*EntityType
	for _, row := range rows {
		name := fmt.Sprintf("%v", row["name"])
		raw := asBytes(row["definition"])

		var et EntityType
		if err := json.Unmarshal(raw, &et); err != nil {
			log.Printf("WARN: skipping entity type %s (invalid JSON): %v", name, err)
			continue
		}
		types = append(types, &et)
	}

	reg.Load(types)
	log.Printf("Loaded %d entity types into registry", len(types))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, s *store.Store, reg *Registry) error {
	return LoadAll(ctx, s, reg)
}

// Save upserts an entity type definition and refreshes the registry.
func Save(ctx context.Context, s *store.Store, reg *Registry, et *EntityType) error {
	defJSON, err := json.Marshal(et)
	if err != nil {
		return fmt.Errorf("marshal entity type: %w", err)
	}

	pb := s.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, s.DB,
		fmt.Sprintf(`INSERT INTO _entity_types (name, definition) VALUES (%s, %s)
		 ON CONFLICT (name) DO UPDATE SET definition = %s, updated_at = %s`,
			pb.Add(et.Name), pb.Add(string(defJSON)), pb.Add(string(defJSON)), s.Dialect.NowExpr()),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("save entity type %s: %w", et.Name, err)
	}
	return Reload(ctx, s, reg)
}

// Delete removes an entity type and refreshes the registry.
func Delete(ctx context.Context, s *store.Store, reg *Registry, name string) error {
	pb := s.Dialect.NewParamBuilder()
	affected, err := store.Exec(ctx, s.DB,
		fmt.Sprintf("DELETE FROM _entity_types WHERE name = %s", pb.Add(name)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete entity type %s: %w", name, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return Reload(ctx, s, reg)
}

func asBytes(v any) []byte {
	switch val := v.(type) {
	case []byte:
		return val
	case string:
		return []byte(val)
	default:
		return nil
	}
}
