package bolt

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// rowHandle implements types.Row for one row of an object-type bucket.
type rowHandle struct {
	table *Table
	index types.RowIndex
}

var _ types.Row = (*rowHandle)(nil)

// Index returns the row's index within its table.
func (r *rowHandle) Index() types.RowIndex {
	return r.index
}

// set encodes value for the column's property type and writes the cell
// inside the held transaction.
func (r *rowHandle) set(column int, value any) error {
	r.table.backend.mu.Lock()
	defer r.table.backend.mu.Unlock()
	if !r.table.backend.attached {
		return types.ErrDetached
	}
	if r.table.backend.tx == nil {
		return types.ErrNoTransaction
	}
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return err
	}
	encoded, err := encodeCell(prop.Type, value)
	if err != nil {
		return fmt.Errorf("writing %s[%d].%s: %w", r.table.schema.Name, r.index, prop.Name, err)
	}
	bucket := r.table.backend.tx.Bucket(r.table.bucket)
	if bucket == nil {
		return fmt.Errorf("%w: %q", types.ErrUnknownObjectType, r.table.schema.Name)
	}
	if err := bucket.Put(cellKey(r.index, column), encoded); err != nil {
		return fmt.Errorf("writing %s[%d].%s: %w", r.table.schema.Name, r.index, prop.Name, err)
	}
	return nil
}

func (r *rowHandle) SetBool(column int, v bool) error        { return r.set(column, v) }
func (r *rowHandle) SetInt(column int, v int64) error        { return r.set(column, v) }
func (r *rowHandle) SetFloat(column int, v float32) error    { return r.set(column, v) }
func (r *rowHandle) SetDouble(column int, v float64) error   { return r.set(column, v) }
func (r *rowHandle) SetString(column int, v string) error    { return r.set(column, v) }
func (r *rowHandle) SetBinary(column int, v []byte) error    { return r.set(column, v) }
func (r *rowHandle) SetTimestamp(column int, v time.Time) error { return r.set(column, v) }

// SetLink points the column at the target row index.
func (r *rowHandle) SetLink(column int, target types.RowIndex) error {
	return r.set(column, target)
}

// NullifyLink clears the column's link by deleting the cell key.
func (r *rowHandle) NullifyLink(column int) error {
	r.table.backend.mu.Lock()
	defer r.table.backend.mu.Unlock()
	if !r.table.backend.attached {
		return types.ErrDetached
	}
	if r.table.backend.tx == nil {
		return types.ErrNoTransaction
	}
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return err
	}
	if prop.Type != types.TypeObject {
		return fmt.Errorf("%w: %s.%s", types.ErrNotLinkColumn, r.table.schema.Name, prop.Name)
	}
	bucket := r.table.backend.tx.Bucket(r.table.bucket)
	if bucket == nil {
		return fmt.Errorf("%w: %q", types.ErrUnknownObjectType, r.table.schema.Name)
	}
	if err := bucket.Delete(cellKey(r.index, column)); err != nil {
		return fmt.Errorf("clearing link %s[%d].%s: %w", r.table.schema.Name, r.index, prop.Name, err)
	}
	return nil
}

// LinkList returns the list slot for the column.
func (r *rowHandle) LinkList(column int) (types.LinkList, error) {
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return nil, err
	}
	if prop.Type != types.TypeList {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrNotListColumn, r.table.schema.Name, prop.Name)
	}
	return &linkList{row: r, column: column}, nil
}

// get reads the raw cell bytes; copied, since bbolt values are only valid
// inside their transaction.
func (r *rowHandle) get(column int) ([]byte, error) {
	r.table.backend.mu.RLock()
	defer r.table.backend.mu.RUnlock()
	if !r.table.backend.attached {
		return nil, types.ErrDetached
	}
	var out []byte
	err := r.table.backend.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(r.table.bucket)
		if bucket == nil {
			return fmt.Errorf("%w: %q", types.ErrUnknownObjectType, r.table.schema.Name)
		}
		raw := bucket.Get(cellKey(r.index, column))
		if raw != nil {
			out = make([]byte, len(raw))
			copy(out, raw)
		}
		return nil
	})
	return out, err
}

// Value reads the scalar stored in the column, decoded to the property's Go
// type. Returns nil while the slot is unset.
func (r *rowHandle) Value(column int) (any, error) {
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return nil, err
	}
	raw, err := r.get(column)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	decoded, err := decodeCell(prop.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("reading %s[%d].%s: %w", r.table.schema.Name, r.index, prop.Name, err)
	}
	return decoded, nil
}

// Link returns the row index the column points at, or RowNotFound when the
// cell is absent.
func (r *rowHandle) Link(column int) (types.RowIndex, error) {
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return types.RowNotFound, err
	}
	if prop.Type != types.TypeObject {
		return types.RowNotFound, fmt.Errorf("%w: %s.%s", types.ErrNotLinkColumn, r.table.schema.Name, prop.Name)
	}
	raw, err := r.get(column)
	if err != nil {
		return types.RowNotFound, err
	}
	if raw == nil {
		return types.RowNotFound, nil
	}
	return decodeRowIndex(raw), nil
}

// linkList implements types.LinkList over a single list cell holding the
// concatenated target encoding.
type linkList struct {
	row    *rowHandle
	column int
}

var _ types.LinkList = (*linkList)(nil)

// Clear removes every element of the list.
func (l *linkList) Clear() error {
	return l.row.set(l.column, []types.RowIndex{})
}

// Append adds a target at the end of the list.
func (l *linkList) Append(target types.RowIndex) error {
	targets, err := l.Targets()
	if err != nil {
		return err
	}
	return l.row.set(l.column, append(targets, target))
}

// Targets returns the list's targets in order. An absent cell reads as an
// empty list.
func (l *linkList) Targets() ([]types.RowIndex, error) {
	raw, err := l.row.get(l.column)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []types.RowIndex{}, nil
	}
	targets, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("reading list %s[%d]: %w", l.row.table.schema.Name, l.row.index, err)
	}
	return targets, nil
}
