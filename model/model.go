package model

// Model is the canonical representation of a database schema. It is a
// pure value: building it has no side effects and its hash is a
// function of its content only.
type Model struct {
	DatabaseType string           `json:"databaseType,omitempty"`
	Tables       map[string]Table `json:"tables"`
}

type Table struct {
	Name        string            `json:"name"`
	Columns     map[string]Column `json:"columns"`
	Indexes     []Index           `json:"indexes,omitempty"`
	ForeignKeys []ForeignKey      `json:"foreignKeys,omitempty"`
}

type Column struct {
	Name      string `json:"name"`
	Type      string `json:"type"` // dialect-neutral SQL type string
	Nullable  bool   `json:"nullable"`
	Primary   bool   `json:"primary,omitempty"`
	Generated bool   `json:"generated,omitempty"`
	Default   string `json:"default,omitempty"`
}

type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

type ForeignKey struct {
	Name      string `json:"name,omitempty"`
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// Clone returns a deep copy. Diff application and merging mutate
// copies, never a caller's model.
func (m *Model) Clone() *Model {
	out := &Model{
		DatabaseType: m.DatabaseType,
		Tables:       make(map[string]Table, len(m.Tables)),
	}
	for name, t := range m.Tables {
		out.Tables[name] = t.Clone()
	}
	return out
}

func (t Table) Clone() Table {
	out := Table{
		Name:    t.Name,
		Columns: make(map[string]Column, len(t.Columns)),
	}
	for name, c := range t.Columns {
		out.Columns[name] = c
	}
	if len(t.Indexes) > 0 {
		out.Indexes = make([]Index, len(t.Indexes))
		for i, idx := range t.Indexes {
			cols := make([]string, len(idx.Columns))
			copy(cols, idx.Columns)
			out.Indexes[i] = Index{Name: idx.Name, Columns: cols, Unique: idx.Unique}
		}
	}
	if len(t.ForeignKeys) > 0 {
		out.ForeignKeys = make([]ForeignKey, len(t.ForeignKeys))
		copy(out.ForeignKeys, t.ForeignKeys)
	}
	return out
}

// Equal compares two foreign keys by their structural identity. The
// optional constraint name is ignored so that introspected and declared
// schemas compare equal.
func (fk ForeignKey) Equal(other ForeignKey) bool {
	return fk.Column == other.Column &&
		fk.RefTable == other.RefTable &&
		fk.RefColumn == other.RefColumn
}

// Equal compares two indexes by name, uniqueness and column order.
func (idx Index) Equal(other Index) bool {
	if idx.Name != other.Name || idx.Unique != other.Unique {
		return false
	}
	if len(idx.Columns) != len(other.Columns) {
		return false
	}
	for i := range idx.Columns {
		if idx.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// Covers reports whether the index references the given column.
func (idx Index) Covers(column string) bool {
	for _, c := range idx.Columns {
		if c == column {
			return true
		}
	}
	return false
}
