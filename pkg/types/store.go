package types

import (
	"errors"
	"time"
)

// RowIndex addresses one persisted row within a table. Row identity is
// stable for the lifetime of the enclosing write transaction.
type RowIndex int64

// RowNotFound is returned by keyed finds when no row matches.
const RowNotFound RowIndex = -1

// Store is the read surface the materializer needs: table lookup by type
// name and the write-transaction precondition check. The materializer never
// opens or closes transactions itself.
type Store interface {
	// TableFor returns the table holding rows of the named object type.
	// Returns ErrUnknownObjectType if the type was never defined.
	TableFor(typeName string) (Table, error)

	// InWriteTransaction reports whether a write transaction is active.
	InWriteTransaction() bool
}

// Table provides row allocation, keyed lookup, and row access for a single
// object type.
type Table interface {
	// FindFirstString returns the index of the first row whose column holds
	// the given string, or RowNotFound.
	FindFirstString(column int, value string) (RowIndex, error)

	// FindFirstInt returns the index of the first row whose column holds
	// the given integer, or RowNotFound.
	FindFirstInt(column int, value int64) (RowIndex, error)

	// AddEmptyRow allocates a new row with every slot unset and returns its
	// index. Requires an active write transaction.
	AddEmptyRow() (RowIndex, error)

	// RowAt returns a handle to the row at the given index.
	// Returns ErrRowNotFound if no such row exists.
	RowAt(index RowIndex) (Row, error)

	// RowCount returns the number of rows in the table.
	RowCount() (int64, error)
}

// Row is a transient handle to one persisted row. Setters mutate exactly
// one column; they require an active write transaction.
type Row interface {
	// Index returns the row's index within its table.
	Index() RowIndex

	SetBool(column int, v bool) error
	SetInt(column int, v int64) error
	SetFloat(column int, v float32) error
	SetDouble(column int, v float64) error
	SetString(column int, v string) error
	SetBinary(column int, v []byte) error
	SetTimestamp(column int, v time.Time) error

	// SetLink points the column's link slot at the target row.
	SetLink(column int, target RowIndex) error

	// NullifyLink clears the column's link slot.
	NullifyLink(column int) error

	// LinkList returns the column's list slot.
	LinkList(column int) (LinkList, error)

	// Value returns the scalar stored in the column (bool, int64, float32,
	// float64, string, []byte, or time.Time), or nil if the slot is unset.
	Value(column int) (any, error)

	// Link returns the row index the column's link slot points at, or
	// RowNotFound if the slot is null.
	Link(column int) (RowIndex, error)
}

// LinkList is an ordered collection of row references stored in one list
// slot. Assignment through the materializer always clears before appending.
type LinkList interface {
	Clear() error
	Append(target RowIndex) error
	Targets() ([]RowIndex, error)
}

// Backend extends Store with lifecycle, type definition, and transaction
// demarcation. Callers attach with a Config, define object types, and run
// write transactions around materialization calls.
type Backend interface {
	Store

	// Attach connects the backend to its storage using config.
	// Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach, table
	// operations return ErrDetached.
	Detach() error

	// DefineType creates storage for an object type described by schema.
	// Defining an already-defined type is a no-op.
	DefineType(schema Schema) error

	// Begin opens a write transaction. Returns ErrTransactionActive if one
	// is already open.
	Begin() error

	// Commit makes the open transaction's writes durable.
	Commit() error

	// Rollback discards the open transaction's writes.
	Rollback() error
}

// Store and transaction errors.
var (
	ErrUnknownObjectType = errors.New("unknown object type")
	ErrRowNotFound       = errors.New("row not found")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrNotLinkColumn     = errors.New("column is not a link slot")
	ErrNotListColumn     = errors.New("column is not a list slot")
	ErrDetached          = errors.New("backend is detached")
	ErrAlreadyAttached   = errors.New("backend is already attached")
	ErrNoTransaction     = errors.New("no open transaction")
	ErrTransactionActive = errors.New("transaction already open")
)
