// Package bolt implements the bbolt storage backend for Pantry. Each object
// type gets its own bucket; row slots are stored under composite row/column
// keys with typed binary encodings, and the write transaction is a held
// bbolt.Tx so materialization failures roll back with the transaction.
package bolt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Backend implements types.Backend on a bbolt database file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *bbolt.DB
	tx       *bbolt.Tx
	tables   map[string]*Table
}

var _ types.Backend = (*Backend)(nil)

// NewBackend creates a detached bolt backend; call Attach with a Config to
// open the database file.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (or creates) pantry.bolt inside the configured data
// directory.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(config.DataDir, "pantry.bolt")
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	slog.Debug("bolt backend attached", "path", path)

	b.db = db
	b.tables = make(map[string]*Table)
	b.attached = true
	return nil
}

// Detach rolls back any open transaction and closes the database.
// Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = nil
	return nil
}

// DefineType creates the bucket for the object type and initializes its row
// counter. Re-defining an existing type is a no-op.
func (b *Backend) DefineType(schema types.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	if _, ok := b.tables[schema.Name]; ok {
		return nil
	}

	name := typeBucketName(schema.Name)
	create := func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(name)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", string(name), err)
		}
		if bucket.Get(counterKey) == nil {
			return bucket.Put(counterKey, encodeRowIndex(0))
		}
		return nil
	}

	var err error
	if b.tx != nil {
		err = create(b.tx)
	} else {
		err = b.db.Update(create)
	}
	if err != nil {
		return err
	}

	b.tables[schema.Name] = &Table{backend: b, schema: schema, bucket: name}
	return nil
}

// TableFor returns the table accessor for the named object type.
func (b *Backend) TableFor(typeName string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}
	t, ok := b.tables[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownObjectType, typeName)
	}
	return t, nil
}

// InWriteTransaction reports whether a bbolt write transaction is held.
func (b *Backend) InWriteTransaction() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.attached && b.tx != nil
}

// Begin opens a writable bbolt transaction and holds it until Commit or
// Rollback.
func (b *Backend) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}
	if b.tx != nil {
		return types.ErrTransactionActive
	}
	tx, err := b.db.Begin(true)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	b.tx = tx
	return nil
}

// Commit makes the held transaction durable.
func (b *Backend) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return types.ErrNoTransaction
	}
	err := b.tx.Commit()
	b.tx = nil
	return err
}

// Rollback discards the held transaction.
func (b *Backend) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return types.ErrNoTransaction
	}
	err := b.tx.Rollback()
	b.tx = nil
	return err
}

// view runs fn inside the held transaction when one is open, so reads see
// the transaction's own writes, and inside a read transaction otherwise.
// Callers must hold b.mu.
func (b *Backend) view(fn func(tx *bbolt.Tx) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	return b.db.View(fn)
}

// typeBucketName returns the bucket holding rows of the object type, in the
// same Type.<name> shape indexes and registries use.
func typeBucketName(typeName string) []byte {
	return []byte("Type." + typeName)
}
