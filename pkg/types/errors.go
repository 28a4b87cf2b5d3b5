package types

import "errors"

// Materialization errors. All are reported synchronously to the caller and
// never retried internally; a failure partway through a create leaves the
// row allocated with the columns written so far, and the enclosing write
// transaction is the only unit of atomicity.
var (
	// ErrNoActiveTransaction is returned by Create when the target store
	// has no active write transaction. Nothing is written.
	ErrNoActiveTransaction = errors.New("objects can only be created within a write transaction")

	// ErrUnknownProperty is returned when a property name is not declared
	// by the object's schema.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrTypeMismatch is returned when an accessor cannot coerce a native
	// value to the property's type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNotSupported is returned for the deprecated "any" property type.
	ErrNotSupported = errors.New("'any' property type is unsupported")

	// ErrMissingPrimaryKey is returned by Create when the schema declares a
	// primary key and the input carries no value for it.
	ErrMissingPrimaryKey = errors.New("missing primary key value")

	// ErrDuplicatePrimaryKey is returned by Create when a row with the same
	// key exists and updating was not requested. No row is created.
	ErrDuplicatePrimaryKey = errors.New("object with this primary key already exists")

	// ErrMissingPropertyValue is returned when a freshly created row has a
	// property with neither an input value nor a default.
	ErrMissingPropertyValue = errors.New("missing property value")
)
