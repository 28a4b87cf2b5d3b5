package memory

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// rowHandle implements types.Row for one row of a memory table.
type rowHandle struct {
	table *Table
	index types.RowIndex
}

var _ types.Row = (*rowHandle)(nil)

// Index returns the row's index within its table.
func (r *rowHandle) Index() types.RowIndex {
	return r.index
}

// set writes one slot under the store lock, enforcing the transaction
// precondition and column bounds.
func (r *rowHandle) set(column int, value any) error {
	r.table.store.mu.Lock()
	defer r.table.store.mu.Unlock()
	if !r.table.store.inTx {
		return types.ErrNoTransaction
	}
	if column < 0 || column >= r.table.columnCount() {
		return fmt.Errorf("%w: %s column %d", types.ErrUnknownColumn, r.table.schema.Name, column)
	}
	r.table.rows[r.index].slots[column] = value
	return nil
}

func (r *rowHandle) SetBool(column int, v bool) error       { return r.set(column, v) }
func (r *rowHandle) SetInt(column int, v int64) error       { return r.set(column, v) }
func (r *rowHandle) SetFloat(column int, v float32) error   { return r.set(column, v) }
func (r *rowHandle) SetDouble(column int, v float64) error  { return r.set(column, v) }
func (r *rowHandle) SetString(column int, v string) error   { return r.set(column, v) }
func (r *rowHandle) SetTimestamp(column int, v time.Time) error { return r.set(column, v) }

// SetBinary copies the blob so later caller mutations cannot leak in.
func (r *rowHandle) SetBinary(column int, v []byte) error {
	dup := make([]byte, len(v))
	copy(dup, v)
	return r.set(column, dup)
}

// SetLink points the column's link slot at the target row.
func (r *rowHandle) SetLink(column int, target types.RowIndex) error {
	return r.set(column, target)
}

// NullifyLink clears the column's link slot.
func (r *rowHandle) NullifyLink(column int) error {
	return r.set(column, types.RowNotFound)
}

// LinkList returns the column's list slot, creating it on first use.
func (r *rowHandle) LinkList(column int) (types.LinkList, error) {
	r.table.store.mu.Lock()
	defer r.table.store.mu.Unlock()
	if column < 0 || column >= r.table.columnCount() {
		return nil, fmt.Errorf("%w: %s column %d", types.ErrUnknownColumn, r.table.schema.Name, column)
	}
	slot := r.table.rows[r.index].slots[column]
	if slot == nil {
		r.table.rows[r.index].slots[column] = []types.RowIndex{}
	} else if _, ok := slot.([]types.RowIndex); !ok {
		return nil, fmt.Errorf("%w: %s column %d", types.ErrNotListColumn, r.table.schema.Name, column)
	}
	return &linkList{row: r, column: column}, nil
}

// Value returns the scalar stored in the column, or nil while unset.
func (r *rowHandle) Value(column int) (any, error) {
	r.table.store.mu.RLock()
	defer r.table.store.mu.RUnlock()
	if column < 0 || column >= r.table.columnCount() {
		return nil, fmt.Errorf("%w: %s column %d", types.ErrUnknownColumn, r.table.schema.Name, column)
	}
	return r.table.rows[r.index].slots[column], nil
}

// Link returns the target of the column's link slot, or RowNotFound while
// the slot is null or unset.
func (r *rowHandle) Link(column int) (types.RowIndex, error) {
	r.table.store.mu.RLock()
	defer r.table.store.mu.RUnlock()
	if column < 0 || column >= r.table.columnCount() {
		return types.RowNotFound, fmt.Errorf("%w: %s column %d", types.ErrUnknownColumn, r.table.schema.Name, column)
	}
	slot := r.table.rows[r.index].slots[column]
	if slot == nil {
		return types.RowNotFound, nil
	}
	target, ok := slot.(types.RowIndex)
	if !ok {
		return types.RowNotFound, fmt.Errorf("%w: %s column %d", types.ErrNotLinkColumn, r.table.schema.Name, column)
	}
	return target, nil
}

// linkList implements types.LinkList over a []types.RowIndex slot.
type linkList struct {
	row    *rowHandle
	column int
}

var _ types.LinkList = (*linkList)(nil)

func (l *linkList) slot() []types.RowIndex {
	v, _ := l.row.table.rows[l.row.index].slots[l.column].([]types.RowIndex)
	return v
}

// Clear empties the list.
func (l *linkList) Clear() error {
	return l.row.set(l.column, []types.RowIndex{})
}

// Append adds a target to the end of the list.
func (l *linkList) Append(target types.RowIndex) error {
	l.row.table.store.mu.Lock()
	defer l.row.table.store.mu.Unlock()
	if !l.row.table.store.inTx {
		return types.ErrNoTransaction
	}
	l.row.table.rows[l.row.index].slots[l.column] = append(l.slot(), target)
	return nil
}

// Targets returns the list's targets in order.
func (l *linkList) Targets() ([]types.RowIndex, error) {
	l.row.table.store.mu.RLock()
	defer l.row.table.store.mu.RUnlock()
	out := make([]types.RowIndex, len(l.slot()))
	copy(out, l.slot())
	return out, nil
}
