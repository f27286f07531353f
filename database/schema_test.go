package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSaveSchema(t *testing.T) {
	schema := &Schema{
		DatabaseType: "postgres",
		Entities: []Entity{
			{
				Name: "users",
				Fields: []Field{
					{Name: "id", Type: "integer", Primary: true},
					{Name: "email", Type: "string(255)", Nullable: true, Unique: true},
				},
				Indexes: []IndexDef{{Fields: []string{"email"}}},
			},
			{
				Name: "posts",
				Fields: []Field{
					{Name: "id", Type: "integer", Primary: true},
					{Name: "user_id", Type: "integer", References: &Reference{Entity: "users", Field: "id"}},
				},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, SaveSchema(schema, path))

	loaded, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, schema, loaded)
}

func TestLoadSchemaMissingFile(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
