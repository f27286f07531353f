package diff

import (
	"sort"
	"strings"

	"github.com/schemamancer/schemamancer/model"
)

type StepType string

const (
	StepAddTable       StepType = "add_table"
	StepDropTable      StepType = "drop_table"
	StepAddColumn      StepType = "add_column"
	StepDropColumn     StepType = "drop_column"
	StepRenameColumn   StepType = "rename_column"
	StepModifyColumn   StepType = "modify_column"
	StepAddIndex       StepType = "add_index"
	StepDropIndex      StepType = "drop_index"
	StepAddForeignKey  StepType = "add_foreign_key"
	StepDropForeignKey StepType = "drop_foreign_key"
)

// MigrationStep is one atomic schema change. The payload fields are
// type-specific; unused ones stay empty.
type MigrationStep struct {
	Type  StepType `json:"type"`
	Table string   `json:"table"`

	TableDef   *model.Table      `json:"tableDef,omitempty"`   // add_table
	Column     *model.Column     `json:"column,omitempty"`     // add_column, modify_column (new), rename_column (new def)
	OldColumn  *model.Column     `json:"oldColumn,omitempty"`  // modify_column
	ColumnName string            `json:"columnName,omitempty"` // drop_column
	FromName   string            `json:"fromName,omitempty"`   // rename_column
	ToName     string            `json:"toName,omitempty"`     // rename_column
	Index      *model.Index      `json:"index,omitempty"`      // add_index
	IndexName  string            `json:"indexName,omitempty"`  // drop_index
	ForeignKey *model.ForeignKey `json:"foreignKey,omitempty"` // add_foreign_key, drop_foreign_key
}

// DiffToSteps converts a diff into a totally ordered step list. The
// ordering is dependency-derived: new tables first so later steps can
// reference them, additive column work before index and foreign key
// creation, then the destructive tail with tables dropped last.
//
// A removed and an added column on the same table whose names differ
// only by case become a single rename_column step. Unquoted identifiers
// fold case in some dialects, so emitting drop+add for such a pair
// would collide. This is the only rename inference performed; a real
// rename is indistinguishable from drop+add here.
func DiffToSteps(d *Result, from, to *model.Model) []MigrationStep {
	var steps []MigrationStep

	// 1. add_table
	for _, name := range d.AddedTables {
		table := to.Tables[name].Clone()
		steps = append(steps, MigrationStep{Type: StepAddTable, Table: name, TableDef: &table})
	}

	tableNames := sortedDiffTables(d)

	// 2. rename detection (case-only pairs)
	renames := make(map[string]map[string]string) // table -> removed name -> added name
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		pairs := detectCaseRenames(td)
		if len(pairs) == 0 {
			continue
		}
		renames[tname] = pairs
		var renamedFrom []string
		for fromName := range pairs {
			renamedFrom = append(renamedFrom, fromName)
		}
		sort.Strings(renamedFrom)
		for _, fromName := range renamedFrom {
			toName := pairs[fromName]
			newCol := to.Tables[tname].Columns[toName]
			steps = append(steps, MigrationStep{
				Type:     StepRenameColumn,
				Table:    tname,
				FromName: fromName,
				ToName:   toName,
				Column:   &newCol,
			})
		}
	}

	// 3. add_column (additions not absorbed by a rename)
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		for _, col := range td.AddedColumns {
			if isRenameTarget(renames[tname], col.Name) {
				continue
			}
			c := col
			steps = append(steps, MigrationStep{Type: StepAddColumn, Table: tname, Column: &c})
		}
	}

	// 4. modify_column
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		for _, change := range td.ModifiedColumns {
			oldCol, newCol := change.Old, change.New
			steps = append(steps, MigrationStep{
				Type:      StepModifyColumn,
				Table:     tname,
				Column:    &newCol,
				OldColumn: &oldCol,
			})
		}
	}

	// 5. add_index (post-rename column names are already the target's).
	// A redefined index (same name, changed definition) must drop the
	// old one first or the create collides on the name.
	redefined := make(map[string]map[string]bool)
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		removedNames := make(map[string]bool, len(td.RemovedIndexes))
		for _, idx := range td.RemovedIndexes {
			removedNames[idx.Name] = true
		}
		for _, idx := range td.AddedIndexes {
			if removedNames[idx.Name] {
				if redefined[tname] == nil {
					redefined[tname] = make(map[string]bool)
				}
				redefined[tname][idx.Name] = true
				steps = append(steps, MigrationStep{Type: StepDropIndex, Table: tname, IndexName: idx.Name})
			}
			i := idx
			steps = append(steps, MigrationStep{Type: StepAddIndex, Table: tname, Index: &i})
		}
	}

	// 6. add_foreign_key
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		for _, fk := range td.AddedForeignKeys {
			f := fk
			steps = append(steps, MigrationStep{Type: StepAddForeignKey, Table: tname, ForeignKey: &f})
		}
	}

	// 7. drop_foreign_key
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		for _, fk := range td.RemovedForeignKeys {
			f := fk
			steps = append(steps, MigrationStep{Type: StepDropForeignKey, Table: tname, ForeignKey: &f})
		}
	}

	// 8. drop_index (explicit removals plus implicit drops caused by
	// removed columns)
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		dropped := make(map[string]bool)
		for name := range redefined[tname] {
			dropped[name] = true // already dropped ahead of its re-create
		}
		for _, idx := range td.RemovedIndexes {
			if !dropped[idx.Name] {
				dropped[idx.Name] = true
				steps = append(steps, MigrationStep{Type: StepDropIndex, Table: tname, IndexName: idx.Name})
			}
		}
		for _, idx := range td.ImplicitIndexDrops {
			if !dropped[idx.Name] {
				dropped[idx.Name] = true
				steps = append(steps, MigrationStep{Type: StepDropIndex, Table: tname, IndexName: idx.Name})
			}
		}
	}

	// 9. drop_column (excluding names absorbed into renames)
	for _, tname := range tableNames {
		td := d.TableDiffs[tname]
		for _, col := range td.RemovedColumns {
			if _, renamed := renames[tname][col.Name]; renamed {
				continue
			}
			steps = append(steps, MigrationStep{Type: StepDropColumn, Table: tname, ColumnName: col.Name})
		}
	}

	// 10. drop_table
	for _, name := range d.RemovedTables {
		steps = append(steps, MigrationStep{Type: StepDropTable, Table: name})
	}

	return steps
}

// detectCaseRenames pairs removed with added columns whose names are
// equal under case folding. Each side participates in at most one pair.
func detectCaseRenames(td *TableDiff) map[string]string {
	if len(td.RemovedColumns) == 0 || len(td.AddedColumns) == 0 {
		return nil
	}
	addedByFold := make(map[string]string)
	for _, col := range td.AddedColumns {
		addedByFold[strings.ToLower(col.Name)] = col.Name
	}
	pairs := make(map[string]string)
	claimed := make(map[string]bool)
	for _, col := range td.RemovedColumns {
		target, ok := addedByFold[strings.ToLower(col.Name)]
		if !ok || claimed[target] || target == col.Name {
			continue
		}
		pairs[col.Name] = target
		claimed[target] = true
	}
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}

func isRenameTarget(pairs map[string]string, name string) bool {
	for _, target := range pairs {
		if target == name {
			return true
		}
	}
	return false
}

func sortedDiffTables(d *Result) []string {
	out := make([]string, 0, len(d.TableDiffs))
	for name := range d.TableDiffs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
