package diff

import (
	"fmt"

	"github.com/schemamancer/schemamancer/model"
)

// ApplySteps structurally applies an ordered step list to a model and
// returns the resulting model. The input is not mutated. This is the
// round-trip half of the diff contract: applying the steps produced by
// DiffToSteps(ComputeDiff(a, b), a, b) to a must reproduce b.
func ApplySteps(m *model.Model, steps []MigrationStep) (*model.Model, error) {
	out := m.Clone()

	for _, step := range steps {
		if err := applyStep(out, step); err != nil {
			return nil, fmt.Errorf("applying %s on %s: %v", step.Type, step.Table, err)
		}
	}

	return out, nil
}

func applyStep(m *model.Model, step MigrationStep) error {
	switch step.Type {
	case StepAddTable:
		if step.TableDef == nil {
			return fmt.Errorf("missing table definition")
		}
		if _, exists := m.Tables[step.Table]; exists {
			return fmt.Errorf("table already exists")
		}
		m.Tables[step.Table] = step.TableDef.Clone()
		return nil

	case StepDropTable:
		if _, exists := m.Tables[step.Table]; !exists {
			return fmt.Errorf("table does not exist")
		}
		delete(m.Tables, step.Table)
		return nil
	}

	table, ok := m.Tables[step.Table]
	if !ok {
		return fmt.Errorf("table does not exist")
	}

	switch step.Type {
	case StepAddColumn:
		if step.Column == nil {
			return fmt.Errorf("missing column definition")
		}
		if _, exists := table.Columns[step.Column.Name]; exists {
			return fmt.Errorf("column %s already exists", step.Column.Name)
		}
		table.Columns[step.Column.Name] = *step.Column

	case StepDropColumn:
		if _, exists := table.Columns[step.ColumnName]; !exists {
			return fmt.Errorf("column %s does not exist", step.ColumnName)
		}
		delete(table.Columns, step.ColumnName)

	case StepRenameColumn:
		if _, exists := table.Columns[step.FromName]; !exists {
			return fmt.Errorf("column %s does not exist", step.FromName)
		}
		delete(table.Columns, step.FromName)
		if step.Column == nil {
			return fmt.Errorf("rename of %s carries no column definition", step.FromName)
		}
		table.Columns[step.ToName] = *step.Column
		// Indexes and foreign keys referencing the old name are not
		// rewritten here; the diff emits their own drop/add steps
		// because their definitions change with the column name.

	case StepModifyColumn:
		if step.Column == nil {
			return fmt.Errorf("missing column definition")
		}
		if _, exists := table.Columns[step.Column.Name]; !exists {
			return fmt.Errorf("column %s does not exist", step.Column.Name)
		}
		table.Columns[step.Column.Name] = *step.Column

	case StepAddIndex:
		if step.Index == nil {
			return fmt.Errorf("missing index definition")
		}
		for _, idx := range table.Indexes {
			if idx.Name == step.Index.Name {
				return fmt.Errorf("index %s already exists", step.Index.Name)
			}
		}
		table.Indexes = append(table.Indexes, *step.Index)

	case StepDropIndex:
		found := false
		kept := table.Indexes[:0]
		for _, idx := range table.Indexes {
			if idx.Name == step.IndexName {
				found = true
				continue
			}
			kept = append(kept, idx)
		}
		if !found {
			return fmt.Errorf("index %s does not exist", step.IndexName)
		}
		table.Indexes = kept

	case StepAddForeignKey:
		if step.ForeignKey == nil {
			return fmt.Errorf("missing foreign key definition")
		}
		table.ForeignKeys = append(table.ForeignKeys, *step.ForeignKey)

	case StepDropForeignKey:
		if step.ForeignKey == nil {
			return fmt.Errorf("missing foreign key definition")
		}
		found := false
		kept := table.ForeignKeys[:0]
		for _, fk := range table.ForeignKeys {
			if !found && fk.Equal(*step.ForeignKey) {
				found = true
				continue
			}
			kept = append(kept, fk)
		}
		if !found {
			return fmt.Errorf("foreign key on %s does not exist", step.ForeignKey.Column)
		}
		table.ForeignKeys = kept

	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}

	m.Tables[step.Table] = table
	return nil
}
