// Shared helpers for pantry CLI commands.
package main

import (
	"fmt"

	"github.com/mesh-intelligence/pantry/internal/bolt"
	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/internal/sqlite"
	"github.com/mesh-intelligence/pantry/pkg/object"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// attachBackend resolves the data directory, creates the configured backend,
// attaches it, and defines every declared object type. The caller must defer
// backend.Detach(). Returns the backend, the schema set, and an accessor
// preloaded with the declared property defaults.
func attachBackend() (types.Backend, *types.SchemaSet, *object.MapAccessor, error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve config dir: %w", err)
	}
	schemas, defaults, err := loadSchemas(configDir)
	if err != nil {
		return nil, nil, nil, err
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve data dir: %w", err)
	}

	name := resolveBackend()
	var backend types.Backend
	switch name {
	case types.BackendMemory:
		backend = memory.NewStore()
	case types.BackendSQLite:
		backend = sqlite.NewBackend()
	case types.BackendBolt:
		backend = bolt.NewBackend()
	default:
		return nil, nil, nil, fmt.Errorf("%w: %q (valid: memory, sqlite, bolt)", types.ErrBackendUnknown, name)
	}

	cfg := types.Config{Backend: name, DataDir: dataDir}
	if err := backend.Attach(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("attach backend: %w", err)
	}

	for _, schema := range schemas.Schemas() {
		if err := backend.DefineType(*schema); err != nil {
			backend.Detach()
			return nil, nil, nil, fmt.Errorf("define type %s: %w", schema.Name, err)
		}
	}

	acc := object.NewMapAccessor(schemas)
	for typeName, props := range defaults {
		for propName, value := range props {
			acc.SetDefault(typeName, propName, value)
		}
	}

	return backend, schemas, acc, nil
}
