package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/schemamancer/schemamancer/database"
)

func usersEntity() db.Entity {
	return db.Entity{
		Name: "users",
		Fields: []db.Field{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "name", Type: "string", Nullable: false},
			{Name: "email", Type: "string(255)", Nullable: true, Unique: true},
		},
		Indexes: []db.IndexDef{
			{Name: "idx_users_name", Fields: []string{"name"}},
		},
	}
}

func postsEntity() db.Entity {
	return db.Entity{
		Name: "posts",
		Fields: []db.Field{
			{Name: "id", Type: "integer", Primary: true},
			{Name: "user_id", Type: "integer", References: &db.Reference{Entity: "users", Field: "id"}},
			{Name: "title", Type: "string", Nullable: false},
		},
	}
}

func TestHashDeterminism(t *testing.T) {
	registry := NewDefaultRegistry()

	forward := &db.Schema{
		DatabaseType: "postgres",
		Entities:     []db.Entity{usersEntity(), postsEntity()},
	}
	reversed := &db.Schema{
		DatabaseType: "postgres",
		Entities:     []db.Entity{postsEntity(), usersEntity()},
	}
	// Shuffle field declaration order within an entity too.
	shuffled := usersEntity()
	shuffled.Fields = []db.Field{shuffled.Fields[2], shuffled.Fields[0], shuffled.Fields[1]}
	fieldOrder := &db.Schema{
		DatabaseType: "postgres",
		Entities:     []db.Entity{postsEntity(), shuffled},
	}

	a, err := BuildModel(forward, registry)
	require.NoError(t, err)
	b, err := BuildModel(reversed, registry)
	require.NoError(t, err)
	c, err := BuildModel(fieldOrder, registry)
	require.NoError(t, err)

	hashA, err := a.Hash()
	require.NoError(t, err)
	hashB, err := b.Hash()
	require.NoError(t, err)
	hashC, err := c.Hash()
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB, "entity order must not affect the hash")
	assert.Equal(t, hashA, hashC, "field order must not affect the hash")
	assert.Len(t, hashA, 64)
	assert.Regexp(t, "^[0-9a-f]+$", hashA)
}

func TestHashChangesWithContent(t *testing.T) {
	registry := NewDefaultRegistry()

	base := &db.Schema{DatabaseType: "postgres", Entities: []db.Entity{usersEntity()}}
	modified := &db.Schema{DatabaseType: "postgres", Entities: []db.Entity{usersEntity()}}
	modified.Entities[0].Fields[1].Nullable = true

	a, err := BuildModel(base, registry)
	require.NoError(t, err)
	b, err := BuildModel(modified, registry)
	require.NoError(t, err)

	hashA, err := a.Hash()
	require.NoError(t, err)
	hashB, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
}

func TestCanonicalJSONSortsIndexes(t *testing.T) {
	m := &Model{
		Tables: map[string]Table{
			"users": {
				Name:    "users",
				Columns: map[string]Column{"id": {Name: "id", Type: "integer", Primary: true}},
				Indexes: []Index{
					{Name: "idx_b", Columns: []string{"id"}},
					{Name: "idx_a", Columns: []string{"id"}},
				},
			},
		},
	}
	swapped := m.Clone()
	tbl := swapped.Tables["users"]
	tbl.Indexes[0], tbl.Indexes[1] = tbl.Indexes[1], tbl.Indexes[0]
	swapped.Tables["users"] = tbl

	hashA, err := m.Hash()
	require.NoError(t, err)
	hashB, err := swapped.Hash()
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}
