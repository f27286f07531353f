package model

import (
	"fmt"

	db "github.com/schemamancer/schemamancer/database"
)

// BuildError reports a schema definition that cannot be turned into a
// model. It fails fast at build time and is never retried.
type BuildError struct {
	Entity string
	Field  string
	Reason string
}

func (e *BuildError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("building model: entity %s, field %s: %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("building model: entity %s: %s", e.Entity, e.Reason)
}

// columnName resolves the physical column name for a field. Explicit
// override wins, then the introspected column name, then the field name
// itself.
func columnName(f db.Field) string {
	if f.ColumnName != "" {
		return f.ColumnName
	}
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return f.Name
}

func tableName(e db.Entity) string {
	if e.TableName != "" {
		return e.TableName
	}
	return e.Name
}

// BuildModel walks the entity definitions and produces a canonical
// Model. Primary-key columns are forced non-nullable regardless of the
// declared nullability. Field references are resolved to foreign keys
// against the target entity's resolved table and column names.
func BuildModel(schema *db.Schema, registry *TypeMapperRegistry) (*Model, error) {
	if schema == nil {
		return nil, &BuildError{Entity: "?", Reason: "nil schema"}
	}

	dialect := schema.DatabaseType
	if dialect == "" {
		dialect = "postgres"
	}
	mapper, err := registry.Mapper(dialect)
	if err != nil {
		return nil, &BuildError{Entity: "?", Reason: err.Error()}
	}

	// First pass: resolve table names and field->column mappings so
	// references can be resolved in any declaration order.
	tableNames := make(map[string]string, len(schema.Entities))
	fieldColumns := make(map[string]map[string]string, len(schema.Entities))
	for _, entity := range schema.Entities {
		if entity.Name == "" {
			return nil, &BuildError{Entity: "?", Reason: "entity without a name"}
		}
		if _, dup := tableNames[entity.Name]; dup {
			return nil, &BuildError{Entity: entity.Name, Reason: "duplicate entity name"}
		}
		tableNames[entity.Name] = tableName(entity)
		cols := make(map[string]string, len(entity.Fields))
		for _, field := range entity.Fields {
			cols[field.Name] = columnName(field)
		}
		fieldColumns[entity.Name] = cols
	}

	m := &Model{
		DatabaseType: dialect,
		Tables:       make(map[string]Table, len(schema.Entities)),
	}

	for _, entity := range schema.Entities {
		table := Table{
			Name:    tableNames[entity.Name],
			Columns: make(map[string]Column, len(entity.Fields)),
		}

		primarySeen := false
		for _, field := range entity.Fields {
			if field.Name == "" {
				return nil, &BuildError{Entity: entity.Name, Field: "?", Reason: "field without a name"}
			}
			if field.Type == "" {
				return nil, &BuildError{Entity: entity.Name, Field: field.Name, Reason: "field without a type"}
			}

			name := columnName(field)
			if _, dup := table.Columns[name]; dup {
				return nil, &BuildError{Entity: entity.Name, Field: field.Name,
					Reason: fmt.Sprintf("duplicate column name %q", name)}
			}

			sqlType, err := mapper.MapType(field.Type)
			if err != nil {
				return nil, &BuildError{Entity: entity.Name, Field: field.Name, Reason: err.Error()}
			}

			// Composite primary keys are not supported; only one
			// column per table may carry the primary flag.
			if field.Primary {
				if primarySeen {
					return nil, &BuildError{Entity: entity.Name, Field: field.Name,
						Reason: "multiple primary key columns (composite keys are unsupported)"}
				}
				primarySeen = true
			}

			col := Column{
				Name:      name,
				Type:      sqlType,
				Nullable:  field.Nullable && !field.Primary,
				Primary:   field.Primary,
				Generated: field.Generated,
				Default:   field.Default,
			}
			table.Columns[name] = col

			if field.Unique && !field.Primary {
				table.Indexes = append(table.Indexes, Index{
					Name:    fmt.Sprintf("uq_%s_%s", table.Name, name),
					Columns: []string{name},
					Unique:  true,
				})
			}

			if ref := field.References; ref != nil {
				refTable, ok := tableNames[ref.Entity]
				if !ok {
					return nil, &BuildError{Entity: entity.Name, Field: field.Name,
						Reason: fmt.Sprintf("reference to unknown entity %q", ref.Entity)}
				}
				refColumn, ok := fieldColumns[ref.Entity][ref.Field]
				if !ok {
					return nil, &BuildError{Entity: entity.Name, Field: field.Name,
						Reason: fmt.Sprintf("reference to unknown field %s.%s", ref.Entity, ref.Field)}
				}
				table.ForeignKeys = append(table.ForeignKeys, ForeignKey{
					Name:      fmt.Sprintf("fk_%s_%s", table.Name, name),
					Column:    name,
					RefTable:  refTable,
					RefColumn: refColumn,
				})
			}
		}

		for _, idx := range entity.Indexes {
			index := Index{Name: idx.Name, Unique: idx.Unique}
			for _, fieldName := range idx.Fields {
				col, ok := fieldColumns[entity.Name][fieldName]
				if !ok {
					return nil, &BuildError{Entity: entity.Name, Field: fieldName,
						Reason: "index references unknown field"}
				}
				index.Columns = append(index.Columns, col)
			}
			if index.Name == "" {
				index.Name = fmt.Sprintf("idx_%s_%s", table.Name, joinColumns(index.Columns))
			}
			table.Indexes = append(table.Indexes, index)
		}

		m.Tables[table.Name] = table
	}

	return m, nil
}

func joinColumns(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += "_"
		}
		out += c
	}
	return out
}
