package model

import (
	"fmt"
	"sort"
	"strings"
)

// DialectTypeMapper converts a logical field type from the schema
// definition into the SQL type string stored in the model.
type DialectTypeMapper interface {
	Dialect() string
	MapType(fieldType string) (string, error)
}

// TypeMapperRegistry holds the mappers for the dialects this build
// knows about. It is passed explicitly into BuildModel; there is no
// package-level registration.
type TypeMapperRegistry struct {
	mappers map[string]DialectTypeMapper
}

func NewTypeMapperRegistry() *TypeMapperRegistry {
	return &TypeMapperRegistry{mappers: make(map[string]DialectTypeMapper)}
}

// NewDefaultRegistry returns a registry with the built-in postgres and
// mysql mappers registered.
func NewDefaultRegistry() *TypeMapperRegistry {
	reg := NewTypeMapperRegistry()
	reg.Register(postgresMapper{})
	reg.Register(mysqlMapper{})
	return reg
}

func (r *TypeMapperRegistry) Register(m DialectTypeMapper) {
	r.mappers[m.Dialect()] = m
}

func (r *TypeMapperRegistry) Mapper(dialect string) (DialectTypeMapper, error) {
	m, ok := r.mappers[dialect]
	if !ok {
		return nil, fmt.Errorf("no type mapper registered for dialect %q (have: %s)",
			dialect, strings.Join(r.Dialects(), ", "))
	}
	return m, nil
}

func (r *TypeMapperRegistry) Dialects() []string {
	out := make([]string, 0, len(r.mappers))
	for d := range r.mappers {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// splitType separates a logical type into base name and optional size
// argument, e.g. "string(100)" -> "string", "(100)".
func splitType(fieldType string) (base, size string) {
	if i := strings.Index(fieldType, "("); i > 0 && strings.HasSuffix(fieldType, ")") {
		return fieldType[:i], fieldType[i:]
	}
	return fieldType, ""
}

type postgresMapper struct{}

func (postgresMapper) Dialect() string { return "postgres" }

func (postgresMapper) MapType(fieldType string) (string, error) {
	base, size := splitType(fieldType)
	switch base {
	case "string":
		if size != "" {
			return "varchar" + size, nil
		}
		return "text", nil
	case "text":
		return "text", nil
	case "integer", "int":
		return "integer", nil
	case "bigint":
		return "bigint", nil
	case "smallint":
		return "smallint", nil
	case "float":
		return "double precision", nil
	case "decimal":
		return "numeric" + size, nil
	case "boolean", "bool":
		return "boolean", nil
	case "datetime", "timestamp":
		return "timestamp", nil
	case "date":
		return "date", nil
	case "uuid":
		return "uuid", nil
	case "json":
		return "jsonb", nil
	case "bytes":
		return "bytea", nil
	}
	return "", fmt.Errorf("unknown field type %q for dialect postgres", fieldType)
}

type mysqlMapper struct{}

func (mysqlMapper) Dialect() string { return "mysql" }

func (mysqlMapper) MapType(fieldType string) (string, error) {
	base, size := splitType(fieldType)
	switch base {
	case "string":
		if size != "" {
			return "varchar" + size, nil
		}
		return "varchar(255)", nil
	case "text":
		return "text", nil
	case "integer", "int":
		return "int", nil
	case "bigint":
		return "bigint", nil
	case "smallint":
		return "smallint", nil
	case "float":
		return "double", nil
	case "decimal":
		return "decimal" + size, nil
	case "boolean", "bool":
		return "tinyint(1)", nil
	case "datetime", "timestamp":
		return "datetime", nil
	case "date":
		return "date", nil
	case "uuid":
		return "char(36)", nil
	case "json":
		return "json", nil
	case "bytes":
		return "blob", nil
	}
	return "", fmt.Errorf("unknown field type %q for dialect mysql", fieldType)
}
