package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// rowHandle implements types.Row for one row of an object-type table.
type rowHandle struct {
	table *Table
	index types.RowIndex
}

var _ types.Row = (*rowHandle)(nil)

// Index returns the row's index within its table.
func (r *rowHandle) Index() types.RowIndex {
	return r.index
}

// set updates one column inside the open transaction.
func (r *rowHandle) set(column int, value any) error {
	r.table.backend.mu.Lock()
	defer r.table.backend.mu.Unlock()
	if !r.table.backend.attached {
		return types.ErrDetached
	}
	if r.table.backend.tx == nil {
		return types.ErrNoTransaction
	}
	if _, err := r.table.propertyAt(column); err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET c%d = ? WHERE row_idx = ?", r.table.name, column)
	if _, err := r.table.backend.tx.Exec(query, value, int64(r.index)); err != nil {
		return fmt.Errorf("writing %s[%d] column %d: %w", r.table.schema.Name, r.index, column, err)
	}
	return nil
}

func (r *rowHandle) SetBool(column int, v bool) error     { return r.set(column, v) }
func (r *rowHandle) SetInt(column int, v int64) error     { return r.set(column, v) }
func (r *rowHandle) SetFloat(column int, v float32) error { return r.set(column, float64(v)) }
func (r *rowHandle) SetDouble(column int, v float64) error { return r.set(column, v) }
func (r *rowHandle) SetString(column int, v string) error { return r.set(column, v) }
func (r *rowHandle) SetBinary(column int, v []byte) error { return r.set(column, v) }

func (r *rowHandle) SetTimestamp(column int, v time.Time) error {
	return r.set(column, v.UTC().Format(timestampFormat))
}

// SetLink points the column at the target row index.
func (r *rowHandle) SetLink(column int, target types.RowIndex) error {
	return r.set(column, int64(target))
}

// NullifyLink clears the column's link.
func (r *rowHandle) NullifyLink(column int) error {
	return r.set(column, nil)
}

// LinkList returns the side-table list slot for the column.
func (r *rowHandle) LinkList(column int) (types.LinkList, error) {
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return nil, err
	}
	if prop.Type != types.TypeList {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrNotListColumn, r.table.schema.Name, prop.Name)
	}
	return &linkList{row: r, name: listTableName(r.table.schema.Name, column)}, nil
}

// Value reads the scalar stored in the column, decoded to the property's Go
// type. Returns nil while the slot is NULL.
func (r *rowHandle) Value(column int) (any, error) {
	r.table.backend.mu.RLock()
	defer r.table.backend.mu.RUnlock()
	if !r.table.backend.attached {
		return nil, types.ErrDetached
	}
	prop, err := r.table.propertyAt(column)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT c%d FROM %s WHERE row_idx = ?", column, r.table.name)
	var raw any
	if err := r.table.backend.querier().QueryRow(query, int64(r.index)).Scan(&raw); err != nil {
		return nil, fmt.Errorf("reading %s[%d] column %d: %w", r.table.schema.Name, r.index, column, err)
	}
	return decodeColumn(prop.Type, raw)
}

// Link returns the row index the column points at, or RowNotFound when the
// column is NULL.
func (r *rowHandle) Link(column int) (types.RowIndex, error) {
	r.table.backend.mu.RLock()
	defer r.table.backend.mu.RUnlock()
	if !r.table.backend.attached {
		return types.RowNotFound, types.ErrDetached
	}
	query := fmt.Sprintf("SELECT c%d FROM %s WHERE row_idx = ?", column, r.table.name)
	var target sql.NullInt64
	if err := r.table.backend.querier().QueryRow(query, int64(r.index)).Scan(&target); err != nil {
		return types.RowNotFound, fmt.Errorf("reading link %s[%d] column %d: %w", r.table.schema.Name, r.index, column, err)
	}
	if !target.Valid {
		return types.RowNotFound, nil
	}
	return types.RowIndex(target.Int64), nil
}

// decodeColumn converts a scanned SQLite value back to the property's Go
// representation.
func decodeColumn(t types.PropertyType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case types.TypeBool:
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected bool column value %T", raw)
		}
		return n != 0, nil
	case types.TypeInt, types.TypeObject:
		return raw, nil
	case types.TypeFloat:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("unexpected float column value %T", raw)
		}
		return float32(f), nil
	case types.TypeDouble:
		return raw, nil
	case types.TypeString, types.TypeAny:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
		return nil, fmt.Errorf("unexpected string column value %T", raw)
	case types.TypeData:
		switch v := raw.(type) {
		case []byte:
			out := make([]byte, len(v))
			copy(out, v)
			return out, nil
		case string:
			return []byte(v), nil
		}
		return nil, fmt.Errorf("unexpected data column value %T", raw)
	case types.TypeDate:
		var text string
		switch v := raw.(type) {
		case string:
			text = v
		case []byte:
			text = string(v)
		default:
			return nil, fmt.Errorf("unexpected date column value %T", raw)
		}
		ts, err := time.Parse(timestampFormat, text)
		if err != nil {
			return nil, fmt.Errorf("parsing date column: %w", err)
		}
		return ts, nil
	}
	return raw, nil
}

// linkList implements types.LinkList over a list side table.
type linkList struct {
	row  *rowHandle
	name string // side table name
}

var _ types.LinkList = (*linkList)(nil)

// Clear removes every element of the list.
func (l *linkList) Clear() error {
	l.row.table.backend.mu.Lock()
	defer l.row.table.backend.mu.Unlock()
	if l.row.table.backend.tx == nil {
		return types.ErrNoTransaction
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE row_idx = ?", l.name)
	if _, err := l.row.table.backend.tx.Exec(query, int64(l.row.index)); err != nil {
		return fmt.Errorf("clearing list %s: %w", l.name, err)
	}
	return nil
}

// Append adds a target at the end of the list.
func (l *linkList) Append(target types.RowIndex) error {
	l.row.table.backend.mu.Lock()
	defer l.row.table.backend.mu.Unlock()
	if l.row.table.backend.tx == nil {
		return types.ErrNoTransaction
	}
	query := fmt.Sprintf(`INSERT INTO %s (row_idx, pos, target)
		VALUES (?, (SELECT COALESCE(MAX(pos) + 1, 0) FROM %s WHERE row_idx = ?), ?)`, l.name, l.name)
	if _, err := l.row.table.backend.tx.Exec(query, int64(l.row.index), int64(l.row.index), int64(target)); err != nil {
		return fmt.Errorf("appending to list %s: %w", l.name, err)
	}
	return nil
}

// Targets returns the list's targets in position order.
func (l *linkList) Targets() ([]types.RowIndex, error) {
	l.row.table.backend.mu.RLock()
	defer l.row.table.backend.mu.RUnlock()
	query := fmt.Sprintf("SELECT target FROM %s WHERE row_idx = ? ORDER BY pos", l.name)
	rows, err := l.row.table.backend.querier().Query(query, int64(l.row.index))
	if err != nil {
		return nil, fmt.Errorf("reading list %s: %w", l.name, err)
	}
	defer rows.Close()

	targets := []types.RowIndex{}
	for rows.Next() {
		var target int64
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("scanning list %s: %w", l.name, err)
		}
		targets = append(targets, types.RowIndex(target))
	}
	return targets, rows.Err()
}
