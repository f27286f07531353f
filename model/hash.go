package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalJSON serializes the model into a stable byte form: map keys
// are emitted in sorted order (encoding/json guarantees this for maps),
// index and foreign key lists are sorted lexicographically, and absent
// optional values are omitted. Two logically identical models serialize
// identically regardless of declaration order.
func (m *Model) CanonicalJSON() ([]byte, error) {
	canon := Model{
		DatabaseType: m.DatabaseType,
		Tables:       make(map[string]Table, len(m.Tables)),
	}
	for name, t := range m.Tables {
		ct := t.Clone()
		sort.Slice(ct.Indexes, func(i, j int) bool {
			return ct.Indexes[i].Name < ct.Indexes[j].Name
		})
		sort.Slice(ct.ForeignKeys, func(i, j int) bool {
			a, b := ct.ForeignKeys[i], ct.ForeignKeys[j]
			if a.Column != b.Column {
				return a.Column < b.Column
			}
			if a.RefTable != b.RefTable {
				return a.RefTable < b.RefTable
			}
			return a.RefColumn < b.RefColumn
		})
		canon.Tables[name] = ct
	}

	data, err := json.Marshal(canon)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing model: %v", err)
	}
	return data, nil
}

// Hash returns the lowercase hex SHA-256 digest of the canonical JSON
// form. It is the content address for snapshots of this model.
func (m *Model) Hash() (string, error) {
	data, err := m.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// Equal reports whether two models have identical canonical content.
func (m *Model) Equal(other *Model) bool {
	a, err := m.CanonicalJSON()
	if err != nil {
		return false
	}
	b, err := other.CanonicalJSON()
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
