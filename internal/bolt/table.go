package bolt

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Table implements types.Table for a single object type.
type Table struct {
	backend *Backend
	schema  types.Schema
	bucket  []byte
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

func (t *Table) rowCount(tx *bbolt.Tx) (types.RowIndex, error) {
	bucket := tx.Bucket(t.bucket)
	if bucket == nil {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownObjectType, t.schema.Name)
	}
	raw := bucket.Get(counterKey)
	if raw == nil {
		return 0, nil
	}
	return decodeRowIndex(raw), nil
}

// FindFirstString scans the column for the first row holding value.
func (t *Table) FindFirstString(column int, value string) (types.RowIndex, error) {
	return t.findFirst(column, []byte(value))
}

// FindFirstInt scans the column for the first row holding value.
func (t *Table) FindFirstInt(column int, value int64) (types.RowIndex, error) {
	return t.findFirst(column, encodeInt(value))
}

// findFirst compares encoded cell values; both string and int encodings are
// byte-for-byte canonical, so equality on bytes is equality on values.
func (t *Table) findFirst(column int, encoded []byte) (types.RowIndex, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return types.RowNotFound, types.ErrDetached
	}

	found := types.RowNotFound
	err := t.backend.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(t.bucket)
		if bucket == nil {
			return fmt.Errorf("%w: %q", types.ErrUnknownObjectType, t.schema.Name)
		}
		count, err := t.rowCount(tx)
		if err != nil {
			return err
		}
		for row := types.RowIndex(0); row < count; row++ {
			raw := bucket.Get(cellKey(row, column))
			if raw != nil && bytes.Equal(raw, encoded) {
				found = row
				return nil
			}
		}
		return nil
	})
	return found, err
}

// AddEmptyRow allocates the next row index. Slots stay absent until written.
func (t *Table) AddEmptyRow() (types.RowIndex, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return types.RowNotFound, types.ErrDetached
	}
	if t.backend.tx == nil {
		return types.RowNotFound, types.ErrNoTransaction
	}

	bucket := t.backend.tx.Bucket(t.bucket)
	if bucket == nil {
		return types.RowNotFound, fmt.Errorf("%w: %q", types.ErrUnknownObjectType, t.schema.Name)
	}
	next, err := t.rowCount(t.backend.tx)
	if err != nil {
		return types.RowNotFound, err
	}
	if err := bucket.Put(counterKey, encodeRowIndex(next+1)); err != nil {
		return types.RowNotFound, fmt.Errorf("advancing row counter for %s: %w", t.schema.Name, err)
	}
	return next, nil
}

// RowAt returns a handle to the row at index.
func (t *Table) RowAt(index types.RowIndex) (types.Row, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrDetached
	}

	var count types.RowIndex
	err := t.backend.view(func(tx *bbolt.Tx) error {
		var err error
		count, err = t.rowCount(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf("%w: %s[%d]", types.ErrRowNotFound, t.schema.Name, index)
	}
	return &rowHandle{table: t, index: index}, nil
}

// RowCount returns the number of allocated rows.
func (t *Table) RowCount() (int64, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return 0, types.ErrDetached
	}

	var count types.RowIndex
	err := t.backend.view(func(tx *bbolt.Tx) error {
		var err error
		count, err = t.rowCount(tx)
		return err
	})
	return int64(count), err
}
