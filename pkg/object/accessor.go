package object

import (
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Accessor bridges one native value representation V to the types the
// materializer writes. Implementations are supplied per host environment
// (one per dynamic value shape) and must be pure: no store access except
// through ObjectIndex.
//
// Coercions return ErrTypeMismatch when the underlying representation
// cannot be converted. Any must return ErrNotSupported; the "any" property
// type is a documented limitation, not a feature.
type Accessor[V any] interface {
	// HasField reports whether the dictionary-like value carries a field
	// with the given name.
	HasField(value V, name string) bool

	// Field returns the named field. Only defined when HasField is true.
	Field(value V, name string) V

	// HasDefault reports whether the accessor knows a default for the
	// named property of the schema.
	HasDefault(schema *types.Schema, name string) bool

	// Default returns the default value for the named property. Only
	// defined when HasDefault is true.
	Default(schema *types.Schema, name string) V

	Bool(value V) (bool, error)
	Int(value V) (int64, error)
	Float(value V) (float32, error)
	Double(value V) (float64, error)
	String(value V) (string, error)
	Timestamp(value V) (time.Time, error)

	// Any is the deprecated mixed coercion. It must fail with
	// ErrNotSupported.
	Any(value V) (any, error)

	// IsNull reports whether the value represents null.
	IsNull(value V) bool

	// ObjectIndex resolves a value that represents either an existing
	// persisted handle or inline object data to the row index to link to,
	// recursively materializing inline data. This is the sole re-entrant
	// call back into Create.
	ObjectIndex(store types.Store, value V, typeName string, update bool) (types.RowIndex, error)

	// Len returns the length of a sequence-like value.
	Len(value V) (int, error)

	// ElementAt returns the i-th element of a sequence-like value.
	ElementAt(value V, i int) (V, error)
}
