package merge

import (
	"fmt"
	"sort"

	"github.com/schemamancer/schemamancer/model"
	"github.com/schemamancer/schemamancer/store"
)

type ConflictType string

const (
	ConflictAmbiguousChange       ConflictType = "ambiguous_change"
	ConflictEntityRemovedButUsed  ConflictType = "entity_removed_but_used"
	ConflictFieldRemovedButUsed   ConflictType = "field_removed_but_used"
	ConflictFieldTypeMismatch     ConflictType = "field_type_mismatch"
	ConflictFieldRequiredMismatch ConflictType = "field_required_mismatch"
)

// Conflict is one irreconcilable three-way difference. Any conflict at
// all disables auto-merge; resolution is always manual.
type Conflict struct {
	Type         ConflictType `json:"type"`
	Entity       string       `json:"entity"`
	Field        string       `json:"field,omitempty"`
	LocalChange  string       `json:"localChange"`
	RemoteChange string       `json:"remoteChange"`
}

// MergeResult carries either a merged model (conflict-free) or the
// conflict list for the caller to surface. Merged is nil whenever
// CanAutoMerge is false.
type MergeResult struct {
	Merged       *model.Model `json:"merged,omitempty"`
	Conflicts    []Conflict   `json:"conflicts,omitempty"`
	CanAutoMerge bool         `json:"canAutoMerge"`
}

// MergeSchemas three-way merges two diverged models against their
// common ancestor. Tables and columns are matched by name. Where both
// branches changed the same attribute divergently a conflict is
// reported; for divergence that does not conflict, the local branch's
// value is preferred.
func MergeSchemas(base, local, remote *model.Model) *MergeResult {
	result := &MergeResult{}
	merged := &model.Model{
		DatabaseType: local.DatabaseType,
		Tables:       make(map[string]model.Table),
	}

	names := tableNameUnion(base, local, remote)
	for _, name := range names {
		baseTable, inBase := base.Tables[name]
		localTable, inLocal := local.Tables[name]
		remoteTable, inRemote := remote.Tables[name]

		switch {
		case inLocal && inRemote:
			if !inBase {
				// Added on both sides. Identical additions merge
				// cleanly; divergent ones are ambiguous because there
				// is no ancestor to arbitrate.
				if tablesEqual(localTable, remoteTable) {
					merged.Tables[name] = localTable.Clone()
				} else {
					result.Conflicts = append(result.Conflicts, Conflict{
						Type:         ConflictAmbiguousChange,
						Entity:       name,
						LocalChange:  describeTable(localTable),
						RemoteChange: describeTable(remoteTable),
					})
				}
				continue
			}
			mergedTable, conflicts := mergeTable(name, baseTable, localTable, remoteTable)
			result.Conflicts = append(result.Conflicts, conflicts...)
			merged.Tables[name] = mergedTable

		case inLocal && !inRemote:
			if !inBase {
				merged.Tables[name] = localTable.Clone() // local addition
				continue
			}
			// Removed remotely. If local also modified it, the removal
			// conflicts with the ongoing use.
			if !tablesEqual(baseTable, localTable) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:         ConflictEntityRemovedButUsed,
					Entity:       name,
					LocalChange:  "modified",
					RemoteChange: "removed",
				})
				continue
			}
			// Unmodified locally: accept the remote removal.

		case !inLocal && inRemote:
			if !inBase {
				merged.Tables[name] = remoteTable.Clone() // remote addition
				continue
			}
			if !tablesEqual(baseTable, remoteTable) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:         ConflictEntityRemovedButUsed,
					Entity:       name,
					LocalChange:  "removed",
					RemoteChange: "modified",
				})
				continue
			}
			// Unmodified remotely: accept the local removal.
		}
	}

	result.CanAutoMerge = len(result.Conflicts) == 0
	if result.CanAutoMerge {
		result.Merged = merged
	}
	sortConflicts(result.Conflicts)
	return result
}

func mergeTable(name string, base, local, remote model.Table) (model.Table, []Conflict) {
	var conflicts []Conflict
	merged := model.Table{
		Name:    local.Name,
		Columns: make(map[string]model.Column),
	}

	for _, colName := range columnNameUnion(base, local, remote) {
		baseCol, inBase := base.Columns[colName]
		localCol, inLocal := local.Columns[colName]
		remoteCol, inRemote := remote.Columns[colName]

		switch {
		case inLocal && inRemote:
			if localCol.Type != remoteCol.Type {
				conflicts = append(conflicts, Conflict{
					Type:         ConflictFieldTypeMismatch,
					Entity:       name,
					Field:        colName,
					LocalChange:  localCol.Type,
					RemoteChange: remoteCol.Type,
				})
				continue
			}
			if localCol.Nullable != remoteCol.Nullable {
				conflicts = append(conflicts, Conflict{
					Type:         ConflictFieldRequiredMismatch,
					Entity:       name,
					Field:        colName,
					LocalChange:  nullability(localCol),
					RemoteChange: nullability(remoteCol),
				})
				continue
			}
			// Remaining attribute divergence (default, generated,
			// primary) prefers local.
			merged.Columns[colName] = localCol

		case inLocal && !inRemote:
			if !inBase {
				merged.Columns[colName] = localCol // local addition
				continue
			}
			if localCol != baseCol {
				conflicts = append(conflicts, Conflict{
					Type:         ConflictFieldRemovedButUsed,
					Entity:       name,
					Field:        colName,
					LocalChange:  "modified",
					RemoteChange: "removed",
				})
				continue
			}
			// Unmodified locally: accept the remote removal.

		case !inLocal && inRemote:
			if !inBase {
				merged.Columns[colName] = remoteCol // remote addition
				continue
			}
			if remoteCol != baseCol {
				conflicts = append(conflicts, Conflict{
					Type:         ConflictFieldRemovedButUsed,
					Entity:       name,
					Field:        colName,
					LocalChange:  "removed",
					RemoteChange: "modified",
				})
				continue
			}
		}
	}

	merged.Indexes = mergeIndexes(local, remote)
	merged.ForeignKeys = mergeForeignKeys(local, remote)
	pruneDanglingStructure(&merged)
	return merged, conflicts
}

// mergeIndexes keeps local's indexes and adds remote indexes whose
// names local does not carry.
func mergeIndexes(local, remote model.Table) []model.Index {
	var out []model.Index
	seen := make(map[string]bool)
	for _, idx := range local.Indexes {
		out = append(out, idx)
		seen[idx.Name] = true
	}
	for _, idx := range remote.Indexes {
		if !seen[idx.Name] {
			out = append(out, idx)
		}
	}
	return out
}

func mergeForeignKeys(local, remote model.Table) []model.ForeignKey {
	out := append([]model.ForeignKey(nil), local.ForeignKeys...)
	for _, fk := range remote.ForeignKeys {
		dup := false
		for _, have := range out {
			if fk.Equal(have) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, fk)
		}
	}
	return out
}

// pruneDanglingStructure drops indexes and foreign keys referencing
// columns that did not survive the merge.
func pruneDanglingStructure(t *model.Table) {
	keptIndexes := t.Indexes[:0]
	for _, idx := range t.Indexes {
		ok := true
		for _, col := range idx.Columns {
			if _, exists := t.Columns[col]; !exists {
				ok = false
				break
			}
		}
		if ok {
			keptIndexes = append(keptIndexes, idx)
		}
	}
	t.Indexes = keptIndexes

	keptFKs := t.ForeignKeys[:0]
	for _, fk := range t.ForeignKeys {
		if _, exists := t.Columns[fk.Column]; exists {
			keptFKs = append(keptFKs, fk)
		}
	}
	t.ForeignKeys = keptFKs
}

// CreateMergeSnapshot persists a resolved merge as a new snapshot whose
// lineage records both branch hashes.
func CreateMergeSnapshot(s *store.Store, merged *model.Model, localHash, remoteHash string, meta store.SnapshotMetadata) (*store.Snapshot, error) {
	if merged == nil {
		return nil, fmt.Errorf("creating merge snapshot: no merged model (conflicts unresolved)")
	}
	snap, err := s.CreateSnapshot(merged, meta, localHash, remoteHash)
	if err != nil {
		return nil, err
	}
	if err := s.SaveSnapshot(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func tablesEqual(a, b model.Table) bool {
	am := &model.Model{Tables: map[string]model.Table{a.Name: a}}
	bm := &model.Model{Tables: map[string]model.Table{b.Name: b}}
	return a.Name == b.Name && am.Equal(bm)
}

func describeTable(t model.Table) string {
	return fmt.Sprintf("table %s with %d columns", t.Name, len(t.Columns))
}

func nullability(c model.Column) string {
	if c.Nullable {
		return "optional"
	}
	return "required"
}

func tableNameUnion(models ...*model.Model) []string {
	seen := make(map[string]bool)
	for _, m := range models {
		for name := range m.Tables {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func columnNameUnion(tables ...model.Table) []string {
	seen := make(map[string]bool)
	for _, t := range tables {
		for name := range t.Columns {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Type < b.Type
	})
}
