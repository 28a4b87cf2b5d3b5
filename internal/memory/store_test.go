package memory

import (
	"errors"
	"testing"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

func noteSchema() types.Schema {
	return types.Schema{Name: "Note", Properties: []types.Property{
		{Name: "text", Type: types.TypeString, Column: 0},
		{Name: "stars", Type: types.TypeInt, Column: 1},
		{Name: "tags", Type: types.TypeList, ObjectType: "Note", Column: 2},
		{Name: "ref", Type: types.TypeObject, ObjectType: "Note", Column: 3},
	}}
}

func attachedStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore()
	if err := store.Attach(types.Config{Backend: types.BackendMemory}); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	t.Cleanup(func() { store.Detach() })
	if err := store.DefineType(noteSchema()); err != nil {
		t.Fatalf("DefineType() error = %v", err)
	}
	return store
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()
	cfg := types.Config{Backend: types.BackendMemory}

	if err := store.Attach(cfg); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := store.Attach(cfg); !errors.Is(err, types.ErrAlreadyAttached) {
		t.Errorf("second Attach() error = %v, want ErrAlreadyAttached", err)
	}
	if err := store.Detach(); err != nil {
		t.Fatalf("Detach() error = %v", err)
	}
	// Detach is idempotent.
	if err := store.Detach(); err != nil {
		t.Errorf("second Detach() error = %v", err)
	}
	if _, err := store.TableFor("Note"); !errors.Is(err, types.ErrDetached) {
		t.Errorf("TableFor() after detach error = %v, want ErrDetached", err)
	}
}

func TestStoreAttach_RejectsInvalidConfig(t *testing.T) {
	store := NewStore()
	if err := store.Attach(types.Config{Backend: "redis"}); !errors.Is(err, types.ErrBackendUnknown) {
		t.Errorf("Attach() error = %v, want ErrBackendUnknown", err)
	}
}

func TestDefineType(t *testing.T) {
	store := attachedStore(t)

	// Re-defining an existing type is a no-op.
	if err := store.DefineType(noteSchema()); err != nil {
		t.Errorf("redefine error = %v", err)
	}
	if err := store.DefineType(types.Schema{Name: ""}); !errors.Is(err, types.ErrInvalidSchema) {
		t.Errorf("DefineType(invalid) error = %v, want ErrInvalidSchema", err)
	}
	if _, err := store.TableFor("Ghost"); !errors.Is(err, types.ErrUnknownObjectType) {
		t.Errorf("TableFor(Ghost) error = %v, want ErrUnknownObjectType", err)
	}
}

func TestTransactionStates(t *testing.T) {
	store := attachedStore(t)

	if store.InWriteTransaction() {
		t.Error("InWriteTransaction() before Begin = true")
	}
	if err := store.Commit(); !errors.Is(err, types.ErrNoTransaction) {
		t.Errorf("Commit() without tx error = %v, want ErrNoTransaction", err)
	}
	if err := store.Rollback(); !errors.Is(err, types.ErrNoTransaction) {
		t.Errorf("Rollback() without tx error = %v, want ErrNoTransaction", err)
	}

	if err := store.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if !store.InWriteTransaction() {
		t.Error("InWriteTransaction() after Begin = false")
	}
	if err := store.Begin(); !errors.Is(err, types.ErrTransactionActive) {
		t.Errorf("nested Begin() error = %v, want ErrTransactionActive", err)
	}
	if err := store.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if store.InWriteTransaction() {
		t.Error("InWriteTransaction() after Commit = true")
	}
}

func TestAddEmptyRow_RequiresTransaction(t *testing.T) {
	store := attachedStore(t)
	table, err := store.TableFor("Note")
	if err != nil {
		t.Fatalf("TableFor() error = %v", err)
	}
	if _, err := table.AddEmptyRow(); !errors.Is(err, types.ErrNoTransaction) {
		t.Errorf("AddEmptyRow() error = %v, want ErrNoTransaction", err)
	}
}

func TestRowWritesAndFinds(t *testing.T) {
	store := attachedStore(t)
	if err := store.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	table, err := store.TableFor("Note")
	if err != nil {
		t.Fatalf("TableFor() error = %v", err)
	}

	index, err := table.AddEmptyRow()
	if err != nil {
		t.Fatalf("AddEmptyRow() error = %v", err)
	}
	row, err := table.RowAt(index)
	if err != nil {
		t.Fatalf("RowAt() error = %v", err)
	}

	if err := row.SetString(0, "hello"); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := row.SetInt(1, 7); err != nil {
		t.Fatalf("SetInt() error = %v", err)
	}

	got, err := table.FindFirstString(0, "hello")
	if err != nil || got != index {
		t.Errorf("FindFirstString() = %d, %v, want %d", got, err, index)
	}
	got, err = table.FindFirstInt(1, 7)
	if err != nil || got != index {
		t.Errorf("FindFirstInt() = %d, %v, want %d", got, err, index)
	}
	got, err = table.FindFirstString(0, "missing")
	if err != nil || got != types.RowNotFound {
		t.Errorf("FindFirstString(missing) = %d, %v, want RowNotFound", got, err)
	}

	value, err := row.Value(0)
	if err != nil || value != "hello" {
		t.Errorf("Value(0) = %v, %v", value, err)
	}
	value, err = row.Value(1)
	if err != nil || value != int64(7) {
		t.Errorf("Value(1) = %v, %v", value, err)
	}

	if _, err := table.RowAt(index + 100); !errors.Is(err, types.ErrRowNotFound) {
		t.Errorf("RowAt(out of range) error = %v, want ErrRowNotFound", err)
	}
}

func TestLinkList(t *testing.T) {
	store := attachedStore(t)
	if err := store.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	table, err := store.TableFor("Note")
	if err != nil {
		t.Fatalf("TableFor() error = %v", err)
	}
	index, err := table.AddEmptyRow()
	if err != nil {
		t.Fatalf("AddEmptyRow() error = %v", err)
	}
	row, err := table.RowAt(index)
	if err != nil {
		t.Fatalf("RowAt() error = %v", err)
	}

	list, err := row.LinkList(2)
	if err != nil {
		t.Fatalf("LinkList() error = %v", err)
	}
	targets, err := list.Targets()
	if err != nil || len(targets) != 0 {
		t.Fatalf("Targets() = %v, %v, want empty", targets, err)
	}

	for _, target := range []types.RowIndex{3, 1, 2} {
		if err := list.Append(target); err != nil {
			t.Fatalf("Append(%d) error = %v", target, err)
		}
	}
	targets, err = list.Targets()
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}
	want := []types.RowIndex{3, 1, 2}
	if len(targets) != len(want) {
		t.Fatalf("Targets() = %v, want %v", targets, want)
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Errorf("targets[%d] = %d, want %d", i, targets[i], want[i])
		}
	}

	if err := list.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	targets, err = list.Targets()
	if err != nil || len(targets) != 0 {
		t.Errorf("Targets() after Clear = %v, %v", targets, err)
	}

	// A slot already holding a scalar is not a list.
	if err := row.SetString(0, "text"); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if _, err := row.LinkList(0); !errors.Is(err, types.ErrNotListColumn) {
		t.Errorf("LinkList(scalar column) error = %v, want ErrNotListColumn", err)
	}
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	store := attachedStore(t)

	// Commit one row, then roll back a second.
	if err := store.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	table, err := store.TableFor("Note")
	if err != nil {
		t.Fatalf("TableFor() error = %v", err)
	}
	index, err := table.AddEmptyRow()
	if err != nil {
		t.Fatalf("AddEmptyRow() error = %v", err)
	}
	row, err := table.RowAt(index)
	if err != nil {
		t.Fatalf("RowAt() error = %v", err)
	}
	if err := row.SetString(0, "kept"); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := store.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if err := store.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := table.AddEmptyRow(); err != nil {
		t.Fatalf("AddEmptyRow() error = %v", err)
	}
	if err := row.SetString(0, "dirty"); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if err := store.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	count, err := table.RowCount()
	if err != nil || count != 1 {
		t.Fatalf("RowCount() after rollback = %d, %v, want 1", count, err)
	}
	value, err := row.Value(0)
	if err != nil || value != "kept" {
		t.Errorf("Value(0) after rollback = %v, %v, want kept", value, err)
	}
}

func TestLinkSlots(t *testing.T) {
	store := attachedStore(t)
	if err := store.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	table, err := store.TableFor("Note")
	if err != nil {
		t.Fatalf("TableFor() error = %v", err)
	}
	index, err := table.AddEmptyRow()
	if err != nil {
		t.Fatalf("AddEmptyRow() error = %v", err)
	}
	row, err := table.RowAt(index)
	if err != nil {
		t.Fatalf("RowAt() error = %v", err)
	}

	// Unset link reads as RowNotFound.
	target, err := row.Link(3)
	if err != nil || target != types.RowNotFound {
		t.Errorf("Link(unset) = %d, %v, want RowNotFound", target, err)
	}

	if err := row.SetLink(3, 5); err != nil {
		t.Fatalf("SetLink() error = %v", err)
	}
	target, err = row.Link(3)
	if err != nil || target != types.RowIndex(5) {
		t.Errorf("Link() = %d, %v, want 5", target, err)
	}

	if err := row.NullifyLink(3); err != nil {
		t.Fatalf("NullifyLink() error = %v", err)
	}
	target, err = row.Link(3)
	if err != nil || target != types.RowNotFound {
		t.Errorf("Link() after nullify = %d, %v, want RowNotFound", target, err)
	}
}
