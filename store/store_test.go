package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamancer/schemamancer/diff"
	"github.com/schemamancer/schemamancer/model"
)

func testModel(tableName string, extra ...model.Column) *model.Model {
	t := model.Table{
		Name: tableName,
		Columns: map[string]model.Column{
			"id": {Name: "id", Type: "integer", Primary: true},
		},
	}
	for _, c := range extra {
		t.Columns[c.Name] = c
	}
	return &model.Model{
		DatabaseType: "postgres",
		Tables:       map[string]model.Table{tableName: t},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	m := testModel("users", model.Column{Name: "email", Type: "varchar(255)", Nullable: true})

	snap, err := s.CreateSnapshot(m, SnapshotMetadata{CreatedBy: "alice", Description: "initial"})
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(snap))

	loaded, err := s.LoadSnapshot(snap.Hash)
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, loaded.Hash)
	assert.True(t, loaded.Model.Equal(m))
	assert.Equal(t, "alice", loaded.Metadata.CreatedBy)

	ok, err := s.HasSnapshot(snap.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasSnapshot("deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveSnapshotIdempotent(t *testing.T) {
	s := newTestStore(t)
	m := testModel("users")

	snap, err := s.CreateSnapshot(m, SnapshotMetadata{})
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(snap))
	require.NoError(t, s.SaveSnapshot(snap), "saving identical content again is a no-op")

	hashes, err := s.ListSnapshots()
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
}

func TestSaveSnapshotIntegrityError(t *testing.T) {
	s := newTestStore(t)
	m := testModel("users")

	snap, err := s.CreateSnapshot(m, SnapshotMetadata{})
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(snap))

	// Same hash claiming different content must be rejected.
	forged := &Snapshot{
		Hash:  snap.Hash,
		Model: testModel("orders"),
	}
	err = s.SaveSnapshot(forged)
	require.Error(t, err)
	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, snap.Hash, integrityErr.Hash)
}

func TestListSnapshotsOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var want []string
	for i, name := range []string{"users", "orders", "events"} {
		snap, err := s.CreateSnapshot(testModel(name), SnapshotMetadata{
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		require.NoError(t, s.SaveSnapshot(snap))
		want = append(want, snap.Hash)
	}

	got, err := s.ListSnapshots()
	require.NoError(t, err)
	assert.Equal(t, want, got, "snapshots list oldest first")
}

func TestTransitionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	from := testModel("users")
	to := testModel("users", model.Column{Name: "bio", Type: "text", Nullable: true})
	fromHash, err := from.Hash()
	require.NoError(t, err)
	toHash, err := to.Hash()
	require.NoError(t, err)

	steps := diff.DiffToSteps(diff.ComputeDiff(from, to), from, to)
	tr := s.CreateTransition(fromHash, toHash, steps, "add bio")
	assert.NotEmpty(t, tr.Metadata.ID)
	require.NoError(t, s.SaveTransition(tr))

	loaded, err := s.GetDirectTransition(fromHash, toHash)
	require.NoError(t, err)
	assert.Equal(t, fromHash, loaded.FromHash)
	assert.Equal(t, toHash, loaded.ToHash)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, diff.StepAddColumn, loaded.Steps[0].Type)

	// Saving the same edge again keeps the original record.
	again := s.CreateTransition(fromHash, toHash, steps, "duplicate")
	require.NoError(t, s.SaveTransition(again))
	loaded2, err := s.GetDirectTransition(fromHash, toHash)
	require.NoError(t, err)
	assert.Equal(t, loaded.Metadata.ID, loaded2.Metadata.ID)

	all, err := s.ListTransitions()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnvironmentState(t *testing.T) {
	s := newTestStore(t)

	t.Run("first use creates empty state", func(t *testing.T) {
		state, err := s.GetOrCreateState("development")
		require.NoError(t, err)
		assert.Equal(t, "development", state.Environment)
		assert.Empty(t, state.CurrentSnapshot)
	})

	t.Run("update moves the pointer", func(t *testing.T) {
		state, err := s.UpdateState("development", "abc123", "")
		require.NoError(t, err)
		assert.Equal(t, "abc123", state.CurrentSnapshot)

		current, err := s.GetCurrentSnapshot("development")
		require.NoError(t, err)
		assert.Equal(t, "abc123", current)
	})

	t.Run("stale expectation conflicts", func(t *testing.T) {
		_, err := s.UpdateState("development", "def456", "wrong")
		require.Error(t, err)
		var conflict *StateConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "development", conflict.Environment)
		assert.Equal(t, "wrong", conflict.Expected)
		assert.Equal(t, "abc123", conflict.Actual)

		// The pointer is untouched after a failed swap.
		current, err := s.GetCurrentSnapshot("development")
		require.NoError(t, err)
		assert.Equal(t, "abc123", current)
	})

	t.Run("list environments", func(t *testing.T) {
		_, err := s.GetOrCreateState("staging")
		require.NoError(t, err)
		envs, err := s.ListEnvironments()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"development", "staging"}, envs)
	})
}
