package db

import (
	"encoding/json"
	"fmt"
	"os"
)

// Schema is the normalized entity/field definition this tool consumes.
// It is produced either by loading a JSON definition file or by
// introspecting a live database.
type Schema struct {
	DatabaseType string   `json:"databaseType,omitempty"` // postgres, mysql
	Entities     []Entity `json:"entities"`
}

type Entity struct {
	Name      string     `json:"name"`
	TableName string     `json:"tableName,omitempty"` // explicit table name override
	Fields    []Field    `json:"fields"`
	Indexes   []IndexDef `json:"indexes,omitempty"`
}

type Field struct {
	Name       string     `json:"name"`
	ColumnName string     `json:"columnName,omitempty"` // explicit column name override
	DBColumn   string     `json:"dbColumn,omitempty"`   // column name derived from introspection
	Type       string     `json:"type"`                 // logical type (e.g. string, integer, datetime)
	Nullable   bool       `json:"nullable"`
	Primary    bool       `json:"primary"`
	Unique     bool       `json:"unique,omitempty"`
	Generated  bool       `json:"generated,omitempty"`
	Default    string     `json:"default,omitempty"`
	References *Reference `json:"references,omitempty"`
}

// Reference points a field at another entity's field, resolved to a
// foreign key during model building.
type Reference struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
}

type IndexDef struct {
	Name   string   `json:"name,omitempty"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique,omitempty"`
}

// SchemaExtractor is implemented by live-database introspectors.
type SchemaExtractor interface {
	ExtractSchema() (*Schema, error)
}

// LoadSchema reads a schema definition from a JSON file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %v", err)
	}

	var schema Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parsing schema file: %v", err)
	}

	return &schema, nil
}

// SaveSchema writes a schema definition to a JSON file.
func SaveSchema(schema *Schema, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing schema file: %v", err)
	}

	return nil
}
