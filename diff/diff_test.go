package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamancer/schemamancer/model"
)

func col(name, typ string, nullable bool) model.Column {
	return model.Column{Name: name, Type: typ, Nullable: nullable}
}

func table(name string, columns ...model.Column) model.Table {
	t := model.Table{Name: name, Columns: make(map[string]model.Column, len(columns))}
	for _, c := range columns {
		t.Columns[c.Name] = c
	}
	return t
}

func modelOf(tables ...model.Table) *model.Model {
	m := &model.Model{DatabaseType: "postgres", Tables: make(map[string]model.Table, len(tables))}
	for _, t := range tables {
		m.Tables[t.Name] = t
	}
	return m
}

func TestComputeDiffIdentity(t *testing.T) {
	m := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("email", "varchar(255)", true),
	))
	d := ComputeDiff(m, m.Clone())
	assert.True(t, d.Empty())
	assert.Empty(t, DiffToSteps(d, m, m.Clone()))
}

func TestComputeDiffTables(t *testing.T) {
	from := modelOf(
		table("users", model.Column{Name: "id", Type: "integer", Primary: true}),
		table("legacy", model.Column{Name: "id", Type: "integer", Primary: true}),
	)
	to := modelOf(
		table("users", model.Column{Name: "id", Type: "integer", Primary: true}),
		table("orders", model.Column{Name: "id", Type: "integer", Primary: true}),
	)

	d := ComputeDiff(from, to)
	assert.Equal(t, []string{"orders"}, d.AddedTables)
	assert.Equal(t, []string{"legacy"}, d.RemovedTables)
	assert.Empty(t, d.TableDiffs)
}

func TestComputeDiffColumns(t *testing.T) {
	from := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("name", "text", false),
		col("age", "integer", true),
	))
	to := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("name", "varchar(100)", false),
		col("email", "varchar(255)", true),
	))

	d := ComputeDiff(from, to)
	require.Contains(t, d.TableDiffs, "users")
	td := d.TableDiffs["users"]

	require.Len(t, td.AddedColumns, 1)
	assert.Equal(t, "email", td.AddedColumns[0].Name)
	require.Len(t, td.RemovedColumns, 1)
	assert.Equal(t, "age", td.RemovedColumns[0].Name)
	require.Len(t, td.ModifiedColumns, 1)
	assert.Equal(t, "text", td.ModifiedColumns[0].Old.Type)
	assert.Equal(t, "varchar(100)", td.ModifiedColumns[0].New.Type)
}

func TestComputeDiffImplicitIndexDrop(t *testing.T) {
	fromTable := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("email", "varchar(255)", true),
	)
	fromTable.Indexes = []model.Index{{Name: "idx_users_email", Columns: []string{"email"}}}
	toTable := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
	)
	// The index definition is unchanged in the target, but the column it
	// covers is gone.
	toTable.Indexes = []model.Index{{Name: "idx_users_email", Columns: []string{"email"}}}

	d := ComputeDiff(modelOf(fromTable), modelOf(toTable))
	require.Contains(t, d.TableDiffs, "users")
	td := d.TableDiffs["users"]
	require.Len(t, td.ImplicitIndexDrops, 1)
	assert.Equal(t, "idx_users_email", td.ImplicitIndexDrops[0].Name)
	assert.Empty(t, td.RemovedIndexes)
}

func TestComputeDiffIndexRedefinition(t *testing.T) {
	fromTable := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("email", "varchar(255)", true),
	)
	fromTable.Indexes = []model.Index{{Name: "idx_users_email", Columns: []string{"email"}}}
	toTable := fromTable.Clone()
	toTable.Indexes = []model.Index{{Name: "idx_users_email", Columns: []string{"email"}, Unique: true}}

	d := ComputeDiff(modelOf(fromTable), modelOf(toTable))
	td := d.TableDiffs["users"]
	require.Len(t, td.RemovedIndexes, 1)
	require.Len(t, td.AddedIndexes, 1)
	assert.False(t, td.RemovedIndexes[0].Unique)
	assert.True(t, td.AddedIndexes[0].Unique)
}

func TestComputeDiffForeignKeysIgnoreName(t *testing.T) {
	fromTable := table("posts",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("user_id", "integer", false),
	)
	fromTable.ForeignKeys = []model.ForeignKey{
		{Name: "posts_user_id_fkey", Column: "user_id", RefTable: "users", RefColumn: "id"},
	}
	toTable := fromTable.Clone()
	toTable.ForeignKeys = []model.ForeignKey{
		{Name: "fk_posts_user_id", Column: "user_id", RefTable: "users", RefColumn: "id"},
	}

	d := ComputeDiff(modelOf(fromTable), modelOf(toTable))
	assert.True(t, d.Empty(), "constraint name alone must not produce a diff")
}
