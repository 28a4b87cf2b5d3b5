package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// timestampFormat is the column encoding for date slots. RFC3339Nano keeps
// lexicographic order aligned with time order.
const timestampFormat = time.RFC3339Nano

// Table implements types.Table for a single object type.
type Table struct {
	backend *Backend
	schema  types.Schema
	name    string // SQL table name
}

var _ types.Table = (*Table)(nil)

// propertyAt returns the schema property stored at the given column.
func (t *Table) propertyAt(column int) (*types.Property, error) {
	for i := range t.schema.Properties {
		if t.schema.Properties[i].Column == column {
			return &t.schema.Properties[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s column %d", types.ErrUnknownColumn, t.schema.Name, column)
}

// FindFirstString returns the lowest row index whose column holds value.
func (t *Table) FindFirstString(column int, value string) (types.RowIndex, error) {
	return t.findFirst(column, value)
}

// FindFirstInt returns the lowest row index whose column holds value.
func (t *Table) FindFirstInt(column int, value int64) (types.RowIndex, error) {
	return t.findFirst(column, value)
}

func (t *Table) findFirst(column int, value any) (types.RowIndex, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return types.RowNotFound, types.ErrDetached
	}
	query := fmt.Sprintf("SELECT row_idx FROM %s WHERE c%d = ? ORDER BY row_idx LIMIT 1", t.name, column)
	var index int64
	err := t.backend.querier().QueryRow(query, value).Scan(&index)
	if err == sql.ErrNoRows {
		return types.RowNotFound, nil
	}
	if err != nil {
		return types.RowNotFound, fmt.Errorf("finding row in %s: %w", t.schema.Name, err)
	}
	return types.RowIndex(index), nil
}

// AddEmptyRow inserts a row with every column NULL and returns its index.
func (t *Table) AddEmptyRow() (types.RowIndex, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return types.RowNotFound, types.ErrDetached
	}
	if t.backend.tx == nil {
		return types.RowNotFound, types.ErrNoTransaction
	}
	res, err := t.backend.tx.Exec(fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", t.name))
	if err != nil {
		return types.RowNotFound, fmt.Errorf("adding row to %s: %w", t.schema.Name, err)
	}
	index, err := res.LastInsertId()
	if err != nil {
		return types.RowNotFound, fmt.Errorf("reading new row index in %s: %w", t.schema.Name, err)
	}
	return types.RowIndex(index), nil
}

// RowAt returns a handle to the row at index.
func (t *Table) RowAt(index types.RowIndex) (types.Row, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrDetached
	}
	var one int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE row_idx = ?", t.name)
	err := t.backend.querier().QueryRow(query, int64(index)).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s[%d]", types.ErrRowNotFound, t.schema.Name, index)
	}
	if err != nil {
		return nil, fmt.Errorf("checking row in %s: %w", t.schema.Name, err)
	}
	return &rowHandle{table: t, index: index}, nil
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() (int64, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return 0, types.ErrDetached
	}
	var count int64
	err := t.backend.querier().QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t.name)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", t.schema.Name, err)
	}
	return count, nil
}
