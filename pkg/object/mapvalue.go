package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// maxResolveDepth bounds recursive inline-object resolution so cyclic input
// data fails loudly instead of recursing without bound.
const maxResolveDepth = 64

// ErrResolveDepthExceeded is returned when nested object data nests deeper
// than maxResolveDepth, which in practice means the input is cyclic.
var ErrResolveDepthExceeded = errors.New("nested object resolution exceeded depth limit")

// MapAccessor is the Accessor for JSON-shaped values: map[string]any for
// dictionaries, []any for sequences, and the scalar types encoding/json
// produces. It carries the schema set needed to materialize inline nested
// objects and an optional per-type table of property defaults.
//
// A MapAccessor is not safe for concurrent use; the engine it feeds is
// single-threaded by contract.
type MapAccessor struct {
	schemas  *types.SchemaSet
	defaults map[string]map[string]any
	depth    int
}

// NewMapAccessor returns an accessor resolving nested object types against
// the given schema set.
func NewMapAccessor(schemas *types.SchemaSet) *MapAccessor {
	return &MapAccessor{
		schemas:  schemas,
		defaults: make(map[string]map[string]any),
	}
}

// SetDefault registers a default value for one property of one object type.
// Defaults apply only when creating rows, never when updating.
func (a *MapAccessor) SetDefault(typeName, propertyName string, value any) {
	if a.defaults[typeName] == nil {
		a.defaults[typeName] = make(map[string]any)
	}
	a.defaults[typeName][propertyName] = value
}

// HasField reports whether value is a dictionary carrying the named key.
// A key present with a null value still counts as present.
func (a *MapAccessor) HasField(value any, name string) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	_, present := m[name]
	return present
}

// Field returns the named key of a dictionary value.
func (a *MapAccessor) Field(value any, name string) any {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return m[name]
}

// HasDefault reports whether a default was registered for the property.
func (a *MapAccessor) HasDefault(schema *types.Schema, name string) bool {
	_, ok := a.defaults[schema.Name][name]
	return ok
}

// Default returns the registered default for the property.
func (a *MapAccessor) Default(schema *types.Schema, name string) any {
	return a.defaults[schema.Name][name]
}

// Bool coerces a native value to bool.
func (a *MapAccessor) Bool(value any) (bool, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return false, mismatch(value, "bool")
}

// Int coerces a native value to int64. float64 is accepted only when it
// holds an integral value, since encoding/json decodes all numbers to it.
func (a *MapAccessor) Int(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, mismatch(value, "int")
		}
		return int64(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, mismatch(value, "int")
		}
		return i, nil
	}
	return 0, mismatch(value, "int")
}

// Float coerces a native value to float32.
func (a *MapAccessor) Float(value any) (float32, error) {
	d, err := a.Double(value)
	if err != nil {
		return 0, mismatch(value, "float")
	}
	return float32(d), nil
}

// Double coerces a native value to float64.
func (a *MapAccessor) Double(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		d, err := v.Float64()
		if err != nil {
			return 0, mismatch(value, "double")
		}
		return d, nil
	}
	return 0, mismatch(value, "double")
}

// String coerces a native value to string. []byte is accepted so binary
// slots can round-trip through the string form the engine writes.
func (a *MapAccessor) String(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", mismatch(value, "string")
}

// Timestamp coerces a native value to time.Time. Strings are parsed as
// RFC3339, the form encoding/json leaves timestamps in.
func (a *MapAccessor) Timestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, mismatch(value, "date")
		}
		return t, nil
	}
	return time.Time{}, mismatch(value, "date")
}

// Any always fails: the "any" property type is unsupported.
func (a *MapAccessor) Any(value any) (any, error) {
	return nil, types.ErrNotSupported
}

// IsNull reports whether the value is null.
func (a *MapAccessor) IsNull(value any) bool {
	return value == nil
}

// ObjectIndex resolves a value to the row index to link to. Existing
// handles (RowIndex or Object) are reused; dictionary values are
// materialized recursively, sharing the enclosing write transaction.
func (a *MapAccessor) ObjectIndex(store types.Store, value any, typeName string, update bool) (types.RowIndex, error) {
	switch v := value.(type) {
	case types.RowIndex:
		return v, nil
	case Object:
		return v.Row.Index(), nil
	case map[string]any:
		if a.depth >= maxResolveDepth {
			return types.RowNotFound, ErrResolveDepthExceeded
		}
		schema, err := a.schemas.SchemaFor(typeName)
		if err != nil {
			return types.RowNotFound, err
		}
		a.depth++
		obj, err := Create[any](a, store, schema, v, update)
		a.depth--
		if err != nil {
			return types.RowNotFound, err
		}
		return obj.Row.Index(), nil
	}
	return types.RowNotFound, fmt.Errorf("%w: cannot link %T as %s", types.ErrTypeMismatch, value, typeName)
}

// Len returns the length of a sequence value.
func (a *MapAccessor) Len(value any) (int, error) {
	s, ok := value.([]any)
	if !ok {
		return 0, mismatch(value, "list")
	}
	return len(s), nil
}

// ElementAt returns the i-th element of a sequence value.
func (a *MapAccessor) ElementAt(value any, i int) (any, error) {
	s, ok := value.([]any)
	if !ok {
		return nil, mismatch(value, "list")
	}
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("%w: list index %d out of range", types.ErrTypeMismatch, i)
	}
	return s[i], nil
}

// mismatch builds a TypeMismatch error naming the offending Go type.
func mismatch(value any, want string) error {
	return fmt.Errorf("%w: cannot convert %T to %s", types.ErrTypeMismatch, value, want)
}
