// Package memory implements the in-memory backend for Pantry. It is the
// reference implementation of the store capability interfaces: rows live in
// per-type columnar tables, and write transactions roll back by restoring a
// snapshot taken at Begin.
package memory

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Store implements types.Backend with in-process tables.
type Store struct {
	mu       sync.RWMutex
	attached bool
	inTx     bool
	tables   map[string]*Table
	snapshot map[string][]row
}

var _ types.Backend = (*Store)(nil)

// NewStore creates a detached memory store; call Attach before use.
func NewStore() *Store {
	return &Store{}
}

// Attach initializes the store. The memory backend needs no data directory.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	s.tables = make(map[string]*Table)
	s.attached = true
	return nil
}

// Detach drops all tables. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
	s.inTx = false
	s.tables = nil
	s.snapshot = nil
	return nil
}

// DefineType creates an empty table for the schema's type name.
// Re-defining an existing type is a no-op.
func (s *Store) DefineType(schema types.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrDetached
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	if _, ok := s.tables[schema.Name]; ok {
		return nil
	}
	s.tables[schema.Name] = &Table{store: s, schema: schema}
	return nil
}

// TableFor returns the table for the named object type.
func (s *Store) TableFor(typeName string) (types.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrDetached
	}
	t, ok := s.tables[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownObjectType, typeName)
	}
	return t, nil
}

// InWriteTransaction reports whether Begin has been called without a
// matching Commit or Rollback.
func (s *Store) InWriteTransaction() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached && s.inTx
}

// Begin opens a write transaction and snapshots every table so Rollback can
// restore it.
func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrDetached
	}
	if s.inTx {
		return types.ErrTransactionActive
	}
	s.snapshot = make(map[string][]row, len(s.tables))
	for name, t := range s.tables {
		s.snapshot[name] = copyRows(t.rows)
	}
	s.inTx = true
	return nil
}

// Commit keeps the transaction's writes and discards the snapshot.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTx {
		return types.ErrNoTransaction
	}
	s.inTx = false
	s.snapshot = nil
	return nil
}

// Rollback restores every table to its state at Begin.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTx {
		return types.ErrNoTransaction
	}
	for name, t := range s.tables {
		t.rows = s.snapshot[name]
	}
	s.inTx = false
	s.snapshot = nil
	return nil
}

// row holds one slot per schema column. A slot is nil while unset; link
// slots hold types.RowIndex and list slots hold []types.RowIndex.
type row struct {
	slots []any
}

func copyRows(rows []row) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		slots := make([]any, len(r.slots))
		copy(slots, r.slots)
		for c, v := range slots {
			if list, ok := v.([]types.RowIndex); ok {
				dup := make([]types.RowIndex, len(list))
				copy(dup, list)
				slots[c] = dup
			}
		}
		out[i] = row{slots: slots}
	}
	return out
}

// Table implements types.Table for one object type.
type Table struct {
	store  *Store
	schema types.Schema
	rows   []row
}

var _ types.Table = (*Table)(nil)

func (t *Table) columnCount() int {
	max := 0
	for _, p := range t.schema.Properties {
		if p.Column+1 > max {
			max = p.Column + 1
		}
	}
	return max
}

// FindFirstString scans the column for the first row holding value.
func (t *Table) FindFirstString(column int, value string) (types.RowIndex, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for i := range t.rows {
		if s, ok := t.rows[i].slots[column].(string); ok && s == value {
			return types.RowIndex(i), nil
		}
	}
	return types.RowNotFound, nil
}

// FindFirstInt scans the column for the first row holding value.
func (t *Table) FindFirstInt(column int, value int64) (types.RowIndex, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for i := range t.rows {
		if n, ok := t.rows[i].slots[column].(int64); ok && n == value {
			return types.RowIndex(i), nil
		}
	}
	return types.RowNotFound, nil
}

// AddEmptyRow appends a row with every slot unset.
func (t *Table) AddEmptyRow() (types.RowIndex, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if !t.store.inTx {
		return types.RowNotFound, types.ErrNoTransaction
	}
	t.rows = append(t.rows, row{slots: make([]any, t.columnCount())})
	return types.RowIndex(len(t.rows) - 1), nil
}

// RowAt returns a handle to the row at index.
func (t *Table) RowAt(index types.RowIndex) (types.Row, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if index < 0 || int(index) >= len(t.rows) {
		return nil, fmt.Errorf("%w: %s[%d]", types.ErrRowNotFound, t.schema.Name, index)
	}
	return &rowHandle{table: t, index: index}, nil
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() (int64, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return int64(len(t.rows)), nil
}
