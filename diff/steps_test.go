package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemamancer/schemamancer/model"
)

func stepTypes(steps []MigrationStep) []StepType {
	out := make([]StepType, len(steps))
	for i, s := range steps {
		out[i] = s.Type
	}
	return out
}

func phaseIndex(t *testing.T, steps []MigrationStep, typ StepType) int {
	t.Helper()
	for i, s := range steps {
		if s.Type == typ {
			return i
		}
	}
	t.Fatalf("no step of type %s in %v", typ, stepTypes(steps))
	return -1
}

func TestDiffToStepsOrdering(t *testing.T) {
	from := modelOf(
		table("users", model.Column{Name: "id", Type: "integer", Primary: true}),
		table("legacy", model.Column{Name: "id", Type: "integer", Primary: true}),
	)

	usersTo := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("team_id", "integer", true),
	)
	usersTo.Indexes = []model.Index{{Name: "idx_users_team_id", Columns: []string{"team_id"}}}
	usersTo.ForeignKeys = []model.ForeignKey{{Column: "team_id", RefTable: "teams", RefColumn: "id"}}
	teamsTo := table("teams", model.Column{Name: "id", Type: "integer", Primary: true})
	to := modelOf(usersTo, teamsTo)

	d := ComputeDiff(from, to)
	steps := DiffToSteps(d, from, to)

	addTable := phaseIndex(t, steps, StepAddTable)
	addColumn := phaseIndex(t, steps, StepAddColumn)
	addIndex := phaseIndex(t, steps, StepAddIndex)
	addFK := phaseIndex(t, steps, StepAddForeignKey)
	dropTable := phaseIndex(t, steps, StepDropTable)

	assert.Less(t, addTable, addColumn, "new tables before column work")
	assert.Less(t, addColumn, addIndex, "columns must exist before their indexes")
	assert.Less(t, addIndex, addFK, "indexes before foreign keys")
	assert.Less(t, addFK, dropTable, "destructive steps last")
	assert.Equal(t, "legacy", steps[dropTable].Table)
}

func TestDiffToStepsCaseRename(t *testing.T) {
	from := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("UserName", "text", false),
	))
	to := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("username", "text", false),
	))

	d := ComputeDiff(from, to)
	steps := DiffToSteps(d, from, to)

	require.Len(t, steps, 1, "a case-only pair collapses to a single rename")
	assert.Equal(t, StepRenameColumn, steps[0].Type)
	assert.Equal(t, "UserName", steps[0].FromName)
	assert.Equal(t, "username", steps[0].ToName)
	require.NotNil(t, steps[0].Column)
	assert.Equal(t, "username", steps[0].Column.Name)
}

func TestDiffToStepsNoRenameForDifferentNames(t *testing.T) {
	from := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("login", "text", false),
	))
	to := modelOf(table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("username", "text", false),
	))

	d := ComputeDiff(from, to)
	steps := DiffToSteps(d, from, to)

	assert.Equal(t, []StepType{StepAddColumn, StepDropColumn}, stepTypes(steps))
}

func TestDiffToStepsIndexRedefinition(t *testing.T) {
	fromTable := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("email", "varchar(255)", true),
	)
	fromTable.Indexes = []model.Index{{Name: "idx_users_email", Columns: []string{"email"}}}
	toTable := fromTable.Clone()
	toTable.Indexes = []model.Index{{Name: "idx_users_email", Columns: []string{"email"}, Unique: true}}

	from, to := modelOf(fromTable), modelOf(toTable)
	d := ComputeDiff(from, to)
	steps := DiffToSteps(d, from, to)

	require.Equal(t, []StepType{StepDropIndex, StepAddIndex}, stepTypes(steps),
		"a redefined index drops just before its re-create and exactly once")
	assert.Equal(t, "idx_users_email", steps[0].IndexName)
	assert.True(t, steps[1].Index.Unique)
}

func TestApplyStepsRoundTrip(t *testing.T) {
	fromUsers := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("UserName", "text", false),
		col("age", "integer", true),
		col("bio", "text", true),
	)
	fromUsers.Indexes = []model.Index{{Name: "idx_users_age", Columns: []string{"age"}}}
	fromLegacy := table("legacy", model.Column{Name: "id", Type: "integer", Primary: true})
	from := modelOf(fromUsers, fromLegacy)

	toUsers := table("users",
		model.Column{Name: "id", Type: "integer", Primary: true},
		col("username", "text", false),
		col("bio", "varchar(500)", true),
		col("team_id", "integer", true),
	)
	toUsers.Indexes = []model.Index{{Name: "idx_users_team_id", Columns: []string{"team_id"}}}
	toUsers.ForeignKeys = []model.ForeignKey{{Column: "team_id", RefTable: "teams", RefColumn: "id"}}
	toTeams := table("teams", model.Column{Name: "id", Type: "integer", Primary: true})
	to := modelOf(toUsers, toTeams)

	d := ComputeDiff(from, to)
	steps := DiffToSteps(d, from, to)

	applied, err := ApplySteps(from, steps)
	require.NoError(t, err)
	assert.True(t, applied.Equal(to), "applying the generated steps must reproduce the target model")

	// The source model must stay untouched.
	assert.Contains(t, from.Tables["users"].Columns, "UserName")
	assert.Contains(t, from.Tables, "legacy")
}

func TestApplyStepsErrors(t *testing.T) {
	m := modelOf(table("users", model.Column{Name: "id", Type: "integer", Primary: true}))

	cases := []struct {
		name string
		step MigrationStep
	}{
		{"drop missing table", MigrationStep{Type: StepDropTable, Table: "nope"}},
		{"add existing table", MigrationStep{Type: StepAddTable, Table: "users", TableDef: &model.Table{Name: "users"}}},
		{"add duplicate column", MigrationStep{Type: StepAddColumn, Table: "users", Column: &model.Column{Name: "id", Type: "integer"}}},
		{"drop missing column", MigrationStep{Type: StepDropColumn, Table: "users", ColumnName: "ghost"}},
		{"drop missing index", MigrationStep{Type: StepDropIndex, Table: "users", IndexName: "ghost"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplySteps(m, []MigrationStep{tc.step})
			assert.Error(t, err)
		})
	}
}
