package diff

import (
	"sort"

	"github.com/schemamancer/schemamancer/model"
)

// Result is the structural difference between two models. Diffing never
// inspects data; it only compares table, column, index and foreign key
// definitions.
type Result struct {
	AddedTables   []string
	RemovedTables []string
	TableDiffs    map[string]*TableDiff
}

// TableDiff holds the changes within a table present in both models.
type TableDiff struct {
	AddedColumns    []model.Column
	RemovedColumns  []model.Column
	ModifiedColumns []ColumnChange

	AddedIndexes   []model.Index
	RemovedIndexes []model.Index
	// ImplicitIndexDrops are indexes that survive in the target model
	// by name but reference a column being removed, so they must be
	// dropped anyway.
	ImplicitIndexDrops []model.Index

	AddedForeignKeys   []model.ForeignKey
	RemovedForeignKeys []model.ForeignKey
}

type ColumnChange struct {
	Old model.Column
	New model.Column
}

func (d *TableDiff) empty() bool {
	return len(d.AddedColumns) == 0 && len(d.RemovedColumns) == 0 &&
		len(d.ModifiedColumns) == 0 &&
		len(d.AddedIndexes) == 0 && len(d.RemovedIndexes) == 0 &&
		len(d.ImplicitIndexDrops) == 0 &&
		len(d.AddedForeignKeys) == 0 && len(d.RemovedForeignKeys) == 0
}

// Empty reports whether the diff carries no changes at all.
func (r *Result) Empty() bool {
	return len(r.AddedTables) == 0 && len(r.RemovedTables) == 0 && len(r.TableDiffs) == 0
}

// ComputeDiff compares two models structurally. Added means present in
// to but not from; removed means present in from but not to; modified
// means present in both with differing type, nullability or default.
func ComputeDiff(from, to *model.Model) *Result {
	result := &Result{TableDiffs: make(map[string]*TableDiff)}

	for name := range from.Tables {
		if _, ok := to.Tables[name]; !ok {
			result.RemovedTables = append(result.RemovedTables, name)
		}
	}
	for name := range to.Tables {
		if _, ok := from.Tables[name]; !ok {
			result.AddedTables = append(result.AddedTables, name)
		}
	}
	sort.Strings(result.AddedTables)
	sort.Strings(result.RemovedTables)

	for name, fromTable := range from.Tables {
		toTable, ok := to.Tables[name]
		if !ok {
			continue
		}
		td := diffTable(fromTable, toTable)
		if !td.empty() {
			result.TableDiffs[name] = td
		}
	}

	return result
}

func diffTable(from, to model.Table) *TableDiff {
	td := &TableDiff{}

	removed := make(map[string]bool)
	for name, col := range from.Columns {
		if _, ok := to.Columns[name]; !ok {
			td.RemovedColumns = append(td.RemovedColumns, col)
			removed[name] = true
		}
	}
	for name, col := range to.Columns {
		if _, ok := from.Columns[name]; !ok {
			td.AddedColumns = append(td.AddedColumns, col)
		}
	}
	for name, toCol := range to.Columns {
		fromCol, ok := from.Columns[name]
		if !ok {
			continue
		}
		if columnChanged(fromCol, toCol) {
			td.ModifiedColumns = append(td.ModifiedColumns, ColumnChange{Old: fromCol, New: toCol})
		}
	}

	sort.Slice(td.AddedColumns, func(i, j int) bool { return td.AddedColumns[i].Name < td.AddedColumns[j].Name })
	sort.Slice(td.RemovedColumns, func(i, j int) bool { return td.RemovedColumns[i].Name < td.RemovedColumns[j].Name })
	sort.Slice(td.ModifiedColumns, func(i, j int) bool { return td.ModifiedColumns[i].New.Name < td.ModifiedColumns[j].New.Name })

	fromIndexes := indexByName(from.Indexes)
	toIndexes := indexByName(to.Indexes)
	for _, idx := range from.Indexes {
		toIdx, ok := toIndexes[idx.Name]
		if !ok || !idx.Equal(toIdx) {
			td.RemovedIndexes = append(td.RemovedIndexes, idx)
		}
	}
	for _, idx := range to.Indexes {
		fromIdx, ok := fromIndexes[idx.Name]
		if !ok || !idx.Equal(fromIdx) {
			td.AddedIndexes = append(td.AddedIndexes, idx)
		}
	}

	// An index that survives by definition but covers a removed column
	// cannot survive the column drop; flag it for an implicit drop.
	for _, idx := range from.Indexes {
		toIdx, ok := toIndexes[idx.Name]
		if !ok || !idx.Equal(toIdx) {
			continue // already an explicit removal or replacement
		}
		for col := range removed {
			if idx.Covers(col) {
				td.ImplicitIndexDrops = append(td.ImplicitIndexDrops, idx)
				break
			}
		}
	}

	sort.Slice(td.AddedIndexes, func(i, j int) bool { return td.AddedIndexes[i].Name < td.AddedIndexes[j].Name })
	sort.Slice(td.RemovedIndexes, func(i, j int) bool { return td.RemovedIndexes[i].Name < td.RemovedIndexes[j].Name })
	sort.Slice(td.ImplicitIndexDrops, func(i, j int) bool { return td.ImplicitIndexDrops[i].Name < td.ImplicitIndexDrops[j].Name })

	for _, fk := range from.ForeignKeys {
		if !containsFK(to.ForeignKeys, fk) {
			td.RemovedForeignKeys = append(td.RemovedForeignKeys, fk)
		}
	}
	for _, fk := range to.ForeignKeys {
		if !containsFK(from.ForeignKeys, fk) {
			td.AddedForeignKeys = append(td.AddedForeignKeys, fk)
		}
	}
	sortFKs(td.AddedForeignKeys)
	sortFKs(td.RemovedForeignKeys)

	return td
}

func columnChanged(from, to model.Column) bool {
	return from.Type != to.Type ||
		from.Nullable != to.Nullable ||
		from.Default != to.Default ||
		from.Primary != to.Primary ||
		from.Generated != to.Generated
}

func indexByName(indexes []model.Index) map[string]model.Index {
	out := make(map[string]model.Index, len(indexes))
	for _, idx := range indexes {
		out[idx.Name] = idx
	}
	return out
}

func containsFK(list []model.ForeignKey, fk model.ForeignKey) bool {
	for _, other := range list {
		if fk.Equal(other) {
			return true
		}
	}
	return false
}

func sortFKs(list []model.ForeignKey) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.RefTable != b.RefTable {
			return a.RefTable < b.RefTable
		}
		return a.RefColumn < b.RefColumn
	})
}
