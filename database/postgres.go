package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// PostgresIntrospector reads a live PostgreSQL database and produces
// the normalized schema definition the model builder consumes. Each
// base table in the public schema becomes one entity.
type PostgresIntrospector struct {
	DB *sql.DB
}

func (p *PostgresIntrospector) ConnectWithDSN(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	p.DB = db
	return nil
}

func (p *PostgresIntrospector) Close() error {
	if p.DB == nil {
		return nil
	}
	return p.DB.Close()
}

// typeFromUDT maps a PostgreSQL type back to the logical field type the
// mapper understands, so introspected and declared schemas build
// identical models.
func typeFromUDT(dataType string, udtName string, charMaxLength sql.NullInt64) string {
	switch dataType {
	case "character varying", "varchar":
		if charMaxLength.Valid {
			return fmt.Sprintf("string(%d)", charMaxLength.Int64)
		}
		return "string"
	case "text":
		return "text"
	case "integer":
		return "integer"
	case "bigint":
		return "bigint"
	case "smallint":
		return "smallint"
	case "double precision", "real":
		return "float"
	case "numeric":
		return "decimal"
	case "boolean":
		return "bool"
	case "timestamp without time zone", "timestamp with time zone":
		return "datetime"
	case "date":
		return "date"
	case "uuid":
		return "uuid"
	case "jsonb", "json":
		return "json"
	case "bytea":
		return "bytes"
	}
	// Fall back to the raw udt name; the builder will reject types it
	// cannot map rather than guessing.
	return udtName
}

func (p *PostgresIntrospector) ExtractSchema() (*Schema, error) {
	if p.DB == nil {
		return nil, errors.New("no database connection")
	}

	rows, err := p.DB.Query(`
		WITH fk_info AS (
			SELECT
				tc.table_name,
				kcu.column_name,
				ccu.table_name AS foreign_table_name,
				ccu.column_name AS foreign_column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
			JOIN information_schema.constraint_column_usage ccu
				ON ccu.constraint_name = tc.constraint_name
			WHERE tc.constraint_type = 'FOREIGN KEY'
		),
		pk_info AS (
			SELECT t.table_name, c.column_name
			FROM information_schema.table_constraints t
			JOIN information_schema.constraint_column_usage c
				ON c.constraint_name = t.constraint_name
			WHERE t.constraint_type = 'PRIMARY KEY'
		),
		unique_info AS (
			SELECT t.table_name, c.column_name
			FROM information_schema.table_constraints t
			JOIN information_schema.constraint_column_usage c
				ON c.constraint_name = t.constraint_name
			WHERE t.constraint_type = 'UNIQUE'
		)
		SELECT
			t.table_name,
			c.column_name,
			c.udt_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.is_generated,
			pk_info.column_name IS NOT NULL as is_primary,
			unique_info.column_name IS NOT NULL as is_unique,
			fk.foreign_table_name,
			fk.foreign_column_name,
			c.character_maximum_length
		FROM
			information_schema.tables t
			JOIN information_schema.columns c ON t.table_name = c.table_name
			LEFT JOIN fk_info fk ON t.table_name = fk.table_name
				AND c.column_name = fk.column_name
			LEFT JOIN pk_info ON t.table_name = pk_info.table_name
				AND c.column_name = pk_info.column_name
			LEFT JOIN unique_info ON t.table_name = unique_info.table_name
				AND c.column_name = unique_info.column_name
		WHERE
			t.table_schema = 'public'
			AND t.table_type = 'BASE TABLE'
		ORDER BY
			t.table_name, c.ordinal_position;
	`)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %v", err)
	}
	defer rows.Close()

	schema := &Schema{
		DatabaseType: "postgres",
		Entities:     make([]Entity, 0),
	}

	currentTable := ""
	var currentFields []Field

	flush := func() {
		if currentTable != "" {
			schema.Entities = append(schema.Entities, Entity{
				Name:      currentTable,
				TableName: currentTable,
				Fields:    currentFields,
			})
		}
	}

	for rows.Next() {
		var tableName, columnName, udtName, dataType, isNullable, isGenerated string
		var columnDefault sql.NullString
		var isPrimary, isUnique bool
		var foreignTable, foreignColumn sql.NullString
		var charMaxLength sql.NullInt64

		if err := rows.Scan(
			&tableName,
			&columnName,
			&udtName,
			&dataType,
			&isNullable,
			&columnDefault,
			&isGenerated,
			&isPrimary,
			&isUnique,
			&foreignTable,
			&foreignColumn,
			&charMaxLength,
		); err != nil {
			return nil, fmt.Errorf("scanning column info: %v", err)
		}

		field := Field{
			Name:      columnName,
			DBColumn:  columnName,
			Type:      typeFromUDT(dataType, udtName, charMaxLength),
			Nullable:  isNullable == "YES",
			Primary:   isPrimary,
			Unique:    isUnique && !isPrimary,
			Generated: isGenerated == "ALWAYS",
		}

		if columnDefault.Valid {
			field.Default = columnDefault.String
		}

		if foreignTable.Valid && foreignColumn.Valid {
			field.References = &Reference{
				Entity: foreignTable.String,
				Field:  foreignColumn.String,
			}
		}

		if currentTable != tableName {
			flush()
			currentTable = tableName
			currentFields = []Field{}
		}
		currentFields = append(currentFields, field)
	}
	flush()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %v", err)
	}

	if err := p.attachIndexes(schema); err != nil {
		return nil, err
	}

	return schema, nil
}

// attachIndexes reads non-constraint indexes from pg_indexes and
// attaches them to their entities.
func (p *PostgresIntrospector) attachIndexes(schema *Schema) error {
	rows, err := p.DB.Query(`
		SELECT
			i.tablename,
			i.indexname,
			ix.indisunique,
			array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)) AS columns
		FROM pg_indexes i
		JOIN pg_class c ON c.relname = i.indexname
		JOIN pg_index ix ON ix.indexrelid = c.oid
		JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = ANY(ix.indkey)
		WHERE i.schemaname = 'public'
			AND NOT ix.indisprimary
			AND NOT EXISTS (
				SELECT 1 FROM pg_constraint con WHERE con.conindid = c.oid
			)
		GROUP BY i.tablename, i.indexname, ix.indisunique
		ORDER BY i.tablename, i.indexname;
	`)
	if err != nil {
		return fmt.Errorf("querying indexes: %v", err)
	}
	defer rows.Close()

	byTable := make(map[string][]IndexDef)
	for rows.Next() {
		var tableName, indexName string
		var unique bool
		var columns []string
		if err := rows.Scan(&tableName, &indexName, &unique, pq.Array(&columns)); err != nil {
			return fmt.Errorf("scanning index info: %v", err)
		}
		byTable[tableName] = append(byTable[tableName], IndexDef{
			Name:   indexName,
			Fields: columns,
			Unique: unique,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating indexes: %v", err)
	}

	for i := range schema.Entities {
		if indexes, ok := byTable[schema.Entities[i].Name]; ok {
			sort.Slice(indexes, func(a, b int) bool {
				return strings.Compare(indexes[a].Name, indexes[b].Name) < 0
			})
			schema.Entities[i].Indexes = indexes
		}
	}
	return nil
}
