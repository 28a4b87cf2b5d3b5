// Package object implements the materialization and upsert engine: it
// reconciles a dynamically-typed, dictionary-like value against a declared
// schema and writes it into a row of a typed store, creating a new row or
// updating the one identified by the primary key.
//
// The engine is synchronous and single-threaded. It neither opens nor
// closes transactions; a failure partway through Create leaves the row
// allocated with the columns written so far, and the enclosing write
// transaction is the only unit of atomicity. Callers needing all-or-nothing
// semantics must roll back the whole transaction.
package object

import (
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Object is the materialized handle returned by Create: the store, the
// schema, and the persisted row the object occupies. Its lifetime is
// bounded by the enclosing session; it holds no other state.
type Object struct {
	Store  types.Store
	Schema *types.Schema
	Row    types.Row
}

// SetProperty writes one named property of an existing object from a native
// value. update controls whether nested reference resolution may update
// existing rows. Exactly one column (or list slot) of the row is mutated.
//
// Returns ErrUnknownProperty if the schema does not declare the name,
// ErrTypeMismatch if the accessor cannot coerce the value, ErrNotSupported
// for "any" properties, or a propagated failure from nested resolution.
func SetProperty[V any](acc Accessor[V], obj Object, name string, value V, update bool) error {
	prop := obj.Schema.PropertyForName(name)
	if prop == nil {
		return fmt.Errorf("%w: setting %q on object %q", types.ErrUnknownProperty, name, obj.Schema.Name)
	}
	return setPropertyValue(acc, obj, *prop, value, update)
}

// setPropertyValue dispatches on the property's type tag. The switch is
// exhaustive over PropertyType; Schema.Validate rejects tags outside the
// enum before they can reach here.
func setPropertyValue[V any](acc Accessor[V], obj Object, prop types.Property, value V, update bool) error {
	column := prop.Column
	switch prop.Type {
	case types.TypeBool:
		v, err := acc.Bool(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetBool(column, v)
	case types.TypeInt:
		v, err := acc.Int(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetInt(column, v)
	case types.TypeFloat:
		v, err := acc.Float(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetFloat(column, v)
	case types.TypeDouble:
		v, err := acc.Double(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetDouble(column, v)
	case types.TypeString:
		v, err := acc.String(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetString(column, v)
	case types.TypeData:
		v, err := acc.String(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetBinary(column, []byte(v))
	case types.TypeAny:
		if _, err := acc.Any(value); err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return propertyError(obj.Schema, prop, types.ErrNotSupported)
	case types.TypeDate:
		v, err := acc.Timestamp(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetTimestamp(column, v)
	case types.TypeObject:
		if acc.IsNull(value) {
			return obj.Row.NullifyLink(column)
		}
		target, err := acc.ObjectIndex(obj.Store, value, prop.ObjectType, update)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		return obj.Row.SetLink(column, target)
	case types.TypeList:
		list, err := obj.Row.LinkList(column)
		if err != nil {
			return err
		}
		// Lists are always fully replaced: clear, then repopulate in input
		// order. Partial list mutation is not supported.
		if err := list.Clear(); err != nil {
			return err
		}
		count, err := acc.Len(value)
		if err != nil {
			return propertyError(obj.Schema, prop, err)
		}
		for i := 0; i < count; i++ {
			element, err := acc.ElementAt(value, i)
			if err != nil {
				return propertyError(obj.Schema, prop, err)
			}
			target, err := acc.ObjectIndex(obj.Store, element, prop.ObjectType, update)
			if err != nil {
				return propertyError(obj.Schema, prop, err)
			}
			if err := list.Append(target); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s.%s", types.ErrUnknownPropertyType, obj.Schema.Name, prop.Name)
}

// Create materializes a native value into a row of the store's table for
// schema's type name. If the schema declares a primary key, the key value
// is used exactly once for a keyed find; an existing row is updated in
// place when update is true and rejected with ErrDuplicatePrimaryKey when
// it is false.
//
// On success every property of a freshly created row has a defined value:
// properties absent from the input are filled from the accessor's defaults,
// and ErrMissingPropertyValue aborts the call when no default exists. On an
// updated row, properties absent from the input are left untouched and the
// primary key is never rewritten.
func Create[V any](acc Accessor[V], store types.Store, schema *types.Schema, value V, update bool) (Object, error) {
	if !store.InWriteTransaction() {
		return Object{}, types.ErrNoActiveTransaction
	}

	table, err := store.TableFor(schema.Name)
	if err != nil {
		return Object{}, err
	}

	// Keyed find based on the primary key type. Only int and string
	// primaries exist; Schema.Validate enforces that.
	rowIndex := types.RowNotFound
	if primary := schema.PrimaryKeyProperty(); primary != nil {
		if !acc.HasField(value, primary.Name) {
			return Object{}, fmt.Errorf("%w: %s.%s", types.ErrMissingPrimaryKey, schema.Name, primary.Name)
		}
		keyValue := acc.Field(value, primary.Name)
		if primary.Type == types.TypeString {
			key, err := acc.String(keyValue)
			if err != nil {
				return Object{}, propertyError(schema, *primary, err)
			}
			rowIndex, err = table.FindFirstString(primary.Column, key)
			if err != nil {
				return Object{}, err
			}
		} else {
			key, err := acc.Int(keyValue)
			if err != nil {
				return Object{}, propertyError(schema, *primary, err)
			}
			rowIndex, err = table.FindFirstInt(primary.Column, key)
			if err != nil {
				return Object{}, err
			}
		}
		if rowIndex != types.RowNotFound && !update {
			return Object{}, fmt.Errorf("%w: type %q", types.ErrDuplicatePrimaryKey, schema.Name)
		}
	}

	created := false
	if rowIndex == types.RowNotFound {
		rowIndex, err = table.AddEmptyRow()
		if err != nil {
			return Object{}, err
		}
		created = true
	}

	row, err := table.RowAt(rowIndex)
	if err != nil {
		return Object{}, err
	}
	obj := Object{Store: store, Schema: schema, Row: row}

	// Populate in schema order. The primary key was consumed by the keyed
	// find above; it is rewritten only on a fresh row, so the column is
	// populated, and never on an update (primary keys are immutable).
	for i := range schema.Properties {
		prop := schema.Properties[i]
		if !created && prop.IsPrimary {
			continue
		}
		switch {
		case acc.HasField(value, prop.Name):
			if err := setPropertyValue(acc, obj, prop, acc.Field(value, prop.Name), update); err != nil {
				return Object{}, err
			}
		case created && acc.HasDefault(schema, prop.Name):
			if err := setPropertyValue(acc, obj, prop, acc.Default(schema, prop.Name), update); err != nil {
				return Object{}, err
			}
		case created:
			return Object{}, fmt.Errorf("%w: %s.%s", types.ErrMissingPropertyValue, schema.Name, prop.Name)
		}
	}

	return obj, nil
}

// propertyError attaches the property's qualified name to a coercion or
// resolution failure while keeping the sentinel matchable with errors.Is.
func propertyError(schema *types.Schema, prop types.Property, err error) error {
	return fmt.Errorf("property %s.%s: %w", schema.Name, prop.Name, err)
}
