// Package sqlite implements the SQLite storage backend for Pantry using
// modernc.org/sqlite. Each object type is stored in its own table with one
// column per scalar or link slot; list slots live in side tables ordered by
// position. Write transactions map directly onto sql.Tx.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Backend implements types.Backend on a SQLite database file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tx       *sql.Tx
	tables   map[string]*Table
}

var _ types.Backend = (*Backend)(nil)

// NewBackend creates a detached SQLite backend; call Attach with a Config
// to open the database.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (or creates) pantry.db inside the configured data directory.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(config.DataDir, "pantry.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	slog.Debug("sqlite backend attached", "path", dbPath)

	b.db = db
	b.config = config
	b.tables = make(map[string]*Table)
	b.attached = true
	return nil
}

// Detach rolls back any open transaction and closes the database.
// Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = nil
	return nil
}

// DefineType creates the object-type table and the side tables for its list
// slots. Re-defining an existing type is a no-op (CREATE IF NOT EXISTS).
func (b *Backend) DefineType(schema types.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	if err := validateIdentifier(schema.Name); err != nil {
		return err
	}
	if _, ok := b.tables[schema.Name]; ok {
		return nil
	}

	name := objectTableName(schema.Name)
	var cols []string
	cols = append(cols, "row_idx INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, p := range schema.Properties {
		if p.Type == types.TypeList {
			continue // list slots live in side tables
		}
		cols = append(cols, fmt.Sprintf("c%d %s", p.Column, columnSQLType(p.Type)))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(cols, ", "))
	if _, err := b.querier().Exec(ddl); err != nil {
		return fmt.Errorf("creating table for %s: %w", schema.Name, err)
	}

	for _, p := range schema.Properties {
		if p.Type != types.TypeList {
			continue
		}
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			row_idx INTEGER NOT NULL,
			pos INTEGER NOT NULL,
			target INTEGER NOT NULL,
			PRIMARY KEY (row_idx, pos))`, listTableName(schema.Name, p.Column))
		if _, err := b.querier().Exec(ddl); err != nil {
			return fmt.Errorf("creating list table for %s.%s: %w", schema.Name, p.Name, err)
		}
	}

	b.tables[schema.Name] = &Table{backend: b, schema: schema, name: name}
	return nil
}

// TableFor returns the table accessor for the named object type.
func (b *Backend) TableFor(typeName string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}
	t, ok := b.tables[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownObjectType, typeName)
	}
	return t, nil
}

// InWriteTransaction reports whether a sql.Tx is open.
func (b *Backend) InWriteTransaction() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached && b.tx != nil
}

// Begin opens a write transaction.
func (b *Backend) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}
	if b.tx != nil {
		return types.ErrTransactionActive
	}
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	b.tx = tx
	return nil
}

// Commit makes the open transaction durable.
func (b *Backend) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return types.ErrNoTransaction
	}
	err := b.tx.Commit()
	b.tx = nil
	return err
}

// Rollback discards the open transaction.
func (b *Backend) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return types.ErrNoTransaction
	}
	err := b.tx.Rollback()
	b.tx = nil
	return err
}

// querier returns the open transaction when one exists so reads and writes
// inside a transaction see its own rows, and the plain connection otherwise.
// Callers must hold b.mu.
func (b *Backend) querier() querier {
	if b.tx != nil {
		return b.tx
	}
	return b.db
}

// querier is the subset of sql.DB and sql.Tx the backend uses.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// objectTableName returns the SQL table holding rows of the object type.
func objectTableName(typeName string) string {
	return "obj_" + typeName
}

// listTableName returns the side table holding one list slot.
func listTableName(typeName string, column int) string {
	return fmt.Sprintf("obj_%s_c%d", typeName, column)
}

// columnSQLType maps a property tag to its SQLite column type.
func columnSQLType(t types.PropertyType) string {
	switch t {
	case types.TypeBool, types.TypeInt, types.TypeObject:
		return "INTEGER"
	case types.TypeFloat, types.TypeDouble:
		return "REAL"
	case types.TypeString, types.TypeAny, types.TypeDate:
		return "TEXT"
	case types.TypeData:
		return "BLOB"
	}
	return "TEXT"
}

// validateIdentifier rejects type names that cannot be embedded in DDL.
func validateIdentifier(name string) error {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return fmt.Errorf("%w: type name %q is not a valid identifier", types.ErrInvalidSchema, name)
		}
	}
	if name == "" {
		return fmt.Errorf("%w: empty type name", types.ErrInvalidSchema)
	}
	return nil
}
