// Package types defines the schema model, the store capability interfaces,
// the configuration, and the standard errors for the Pantry object store.
// The materializer in pkg/object consumes these contracts; the backends in
// internal/memory, internal/sqlite, and internal/bolt implement them.
package types
