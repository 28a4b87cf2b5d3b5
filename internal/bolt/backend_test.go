package bolt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/object"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

func testSchema() types.Schema {
	return types.Schema{Name: "Sample", Properties: []types.Property{
		{Name: "label", Type: types.TypeString, Column: 0, IsPrimary: true},
		{Name: "flag", Type: types.TypeBool, Column: 1},
		{Name: "count", Type: types.TypeInt, Column: 2},
		{Name: "ratio", Type: types.TypeFloat, Column: 3},
		{Name: "score", Type: types.TypeDouble, Column: 4},
		{Name: "blob", Type: types.TypeData, Column: 5},
		{Name: "seen", Type: types.TypeDate, Column: 6},
		{Name: "ref", Type: types.TypeObject, ObjectType: "Sample", Column: 7},
		{Name: "others", Type: types.TypeList, ObjectType: "Sample", Column: 8},
	}}
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	backend := NewBackend()
	cfg := types.Config{Backend: types.BackendBolt, DataDir: t.TempDir()}
	require.NoError(t, backend.Attach(cfg))
	t.Cleanup(func() { backend.Detach() })
	require.NoError(t, backend.DefineType(testSchema()))
	return backend
}

func TestBackendLifecycle(t *testing.T) {
	backend := NewBackend()
	cfg := types.Config{Backend: types.BackendBolt, DataDir: t.TempDir()}

	require.NoError(t, backend.Attach(cfg))
	assert.ErrorIs(t, backend.Attach(cfg), types.ErrAlreadyAttached)

	require.NoError(t, backend.Detach())
	require.NoError(t, backend.Detach(), "detach is idempotent")

	_, err := backend.TableFor("Sample")
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackendAttach_RejectsInvalidConfig(t *testing.T) {
	backend := NewBackend()
	err := backend.Attach(types.Config{Backend: types.BackendBolt})
	assert.ErrorIs(t, err, types.ErrDataDirEmpty)
}

func TestCodecRoundTrips(t *testing.T) {
	t.Run("int preserves order and value", func(t *testing.T) {
		values := []int64{-1 << 62, -7, -1, 0, 1, 7, 1 << 62}
		var prev []byte
		for _, v := range values {
			encoded := encodeInt(v)
			assert.Equal(t, v, decodeInt(encoded))
			if prev != nil {
				assert.Less(t, string(prev), string(encoded), "encoding must sort like the values")
			}
			prev = encoded
		}
	})

	t.Run("double preserves order and value", func(t *testing.T) {
		values := []float64{-100.5, -1, -0.25, 0, 0.25, 1, 100.5}
		var prev []byte
		for _, v := range values {
			encoded := encodeDouble(v)
			assert.Equal(t, v, decodeDouble(encoded))
			if prev != nil {
				assert.Less(t, string(prev), string(encoded), "encoding must sort like the values")
			}
			prev = encoded
		}
	})

	t.Run("time", func(t *testing.T) {
		ts := time.Date(2026, 8, 23, 10, 30, 0, 123456789, time.UTC)
		got, err := decodeTime(encodeTime(ts))
		require.NoError(t, err)
		assert.True(t, got.Equal(ts))
	})

	t.Run("list", func(t *testing.T) {
		targets := []types.RowIndex{3, 0, 7}
		got, err := decodeList(encodeList(targets))
		require.NoError(t, err)
		assert.Equal(t, targets, got)

		_, err = decodeList([]byte{1, 2, 3})
		assert.Error(t, err)
	})
}

func TestScalarRoundTrip(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Begin())

	table, err := backend.TableFor("Sample")
	require.NoError(t, err)

	index, err := table.AddEmptyRow()
	require.NoError(t, err)
	row, err := table.RowAt(index)
	require.NoError(t, err)

	seen := time.Date(2026, 8, 23, 10, 30, 0, 123456789, time.UTC)
	require.NoError(t, row.SetString(0, "first"))
	require.NoError(t, row.SetBool(1, true))
	require.NoError(t, row.SetInt(2, -42))
	require.NoError(t, row.SetFloat(3, 0.5))
	require.NoError(t, row.SetDouble(4, 2.25))
	require.NoError(t, row.SetBinary(5, []byte{0x01, 0x02}))
	require.NoError(t, row.SetTimestamp(6, seen))

	require.NoError(t, backend.Commit())

	label, err := row.Value(0)
	require.NoError(t, err)
	assert.Equal(t, "first", label)

	flag, err := row.Value(1)
	require.NoError(t, err)
	assert.Equal(t, true, flag)

	count, err := row.Value(2)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), count)

	ratio, err := row.Value(3)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), ratio)

	score, err := row.Value(4)
	require.NoError(t, err)
	assert.Equal(t, 2.25, score)

	blob, err := row.Value(5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, blob)

	got, err := row.Value(6)
	require.NoError(t, err)
	require.IsType(t, time.Time{}, got)
	assert.True(t, got.(time.Time).Equal(seen))

	// Unwritten cells read as nil.
	ref, err := row.Link(7)
	require.NoError(t, err)
	assert.Equal(t, types.RowNotFound, ref)
}

func TestFindFirst(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Begin())

	table, err := backend.TableFor("Sample")
	require.NoError(t, err)

	first, err := table.AddEmptyRow()
	require.NoError(t, err)
	row, err := table.RowAt(first)
	require.NoError(t, err)
	require.NoError(t, row.SetString(0, "alpha"))
	require.NoError(t, row.SetInt(2, 7))

	second, err := table.AddEmptyRow()
	require.NoError(t, err)
	row2, err := table.RowAt(second)
	require.NoError(t, err)
	require.NoError(t, row2.SetString(0, "beta"))
	require.NoError(t, row2.SetInt(2, 7))

	got, err := table.FindFirstString(0, "beta")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	// Ties resolve to the lowest row index.
	got, err = table.FindFirstInt(2, 7)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = table.FindFirstString(0, "missing")
	require.NoError(t, err)
	assert.Equal(t, types.RowNotFound, got)

	count, err := table.RowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestLinksAndLists(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Begin())

	table, err := backend.TableFor("Sample")
	require.NoError(t, err)

	target, err := table.AddEmptyRow()
	require.NoError(t, err)
	index, err := table.AddEmptyRow()
	require.NoError(t, err)
	row, err := table.RowAt(index)
	require.NoError(t, err)

	require.NoError(t, row.SetLink(7, target))
	got, err := row.Link(7)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	require.NoError(t, row.NullifyLink(7))
	got, err = row.Link(7)
	require.NoError(t, err)
	assert.Equal(t, types.RowNotFound, got)

	// Link access on a non-object column is rejected.
	_, err = row.Link(0)
	assert.ErrorIs(t, err, types.ErrNotLinkColumn)
	assert.ErrorIs(t, row.NullifyLink(0), types.ErrNotLinkColumn)

	list, err := row.LinkList(8)
	require.NoError(t, err)
	targets, err := list.Targets()
	require.NoError(t, err)
	assert.Empty(t, targets)

	require.NoError(t, list.Append(target))
	require.NoError(t, list.Append(index))
	targets, err = list.Targets()
	require.NoError(t, err)
	assert.Equal(t, []types.RowIndex{target, index}, targets)

	require.NoError(t, list.Clear())
	targets, err = list.Targets()
	require.NoError(t, err)
	assert.Empty(t, targets)

	_, err = row.LinkList(0)
	assert.ErrorIs(t, err, types.ErrNotListColumn)
}

func TestWritesRequireTransaction(t *testing.T) {
	backend := newTestBackend(t)

	table, err := backend.TableFor("Sample")
	require.NoError(t, err)

	_, err = table.AddEmptyRow()
	assert.ErrorIs(t, err, types.ErrNoTransaction)
	assert.False(t, backend.InWriteTransaction())

	require.NoError(t, backend.Begin())
	assert.True(t, backend.InWriteTransaction())
	assert.ErrorIs(t, backend.Begin(), types.ErrTransactionActive)
	require.NoError(t, backend.Rollback())
	assert.ErrorIs(t, backend.Rollback(), types.ErrNoTransaction)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	backend := newTestBackend(t)
	require.NoError(t, backend.Begin())

	table, err := backend.TableFor("Sample")
	require.NoError(t, err)
	_, err = table.AddEmptyRow()
	require.NoError(t, err)

	require.NoError(t, backend.Rollback())

	count, err := table.RowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// TestEngineConformance re-runs the materializer's keyed-create semantics
// against the bolt backend.
func TestEngineConformance(t *testing.T) {
	backend := newTestBackend(t)

	set, err := types.NewSchemaSet(
		types.Schema{Name: "Person", Properties: []types.Property{
			{Name: "name", Type: types.TypeString, Column: 0, IsPrimary: true},
			{Name: "age", Type: types.TypeInt, Column: 1},
			{Name: "bestFriend", Type: types.TypeObject, ObjectType: "Person", Column: 2},
		}},
	)
	require.NoError(t, err)
	person, err := set.SchemaFor("Person")
	require.NoError(t, err)
	require.NoError(t, backend.DefineType(*person))

	acc := object.NewMapAccessor(set)
	require.NoError(t, backend.Begin())

	obj, err := object.Create[any](acc, backend, person, map[string]any{
		"name": "ada",
		"age":  36,
		"bestFriend": map[string]any{
			"name": "grace", "age": 40, "bestFriend": nil,
		},
	}, false)
	require.NoError(t, err)

	_, err = object.Create[any](acc, backend, person,
		map[string]any{"name": "ada", "age": 99, "bestFriend": nil}, false)
	assert.ErrorIs(t, err, types.ErrDuplicatePrimaryKey)

	upserted, err := object.Create[any](acc, backend, person,
		map[string]any{"name": "ada", "age": 37}, true)
	require.NoError(t, err)
	assert.Equal(t, obj.Row.Index(), upserted.Row.Index())

	require.NoError(t, backend.Commit())

	table, err := backend.TableFor("Person")
	require.NoError(t, err)
	count, err := table.RowCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	age, err := upserted.Row.Value(1)
	require.NoError(t, err)
	assert.Equal(t, int64(37), age)

	friend, err := upserted.Row.Link(2)
	require.NoError(t, err)
	friendRow, err := table.RowAt(friend)
	require.NoError(t, err)
	name, err := friendRow.Value(0)
	require.NoError(t, err)
	assert.Equal(t, "grace", name)
}
