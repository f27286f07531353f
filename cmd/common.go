package cmd

import (
	"fmt"

	db "github.com/schemamancer/schemamancer/database"
	utils "github.com/schemamancer/schemamancer/internal/utils"
	"github.com/schemamancer/schemamancer/model"
	"github.com/schemamancer/schemamancer/store"
)

// openStore locates the project config and opens the snapshot store it
// points at.
func openStore() (*store.Store, *utils.Config, error) {
	configPath, err := utils.FindConfigFile()
	if err != nil {
		return nil, nil, fmt.Errorf("finding config file: %v", err)
	}
	config, err := utils.ReadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %v", err)
	}
	s, err := store.New(utils.StorageRoot(configPath, config))
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %v", err)
	}
	return s, config, nil
}

// loadModelFromInput builds a model from either a schema definition
// file or a live database DSN, whichever the caller supplied.
func loadModelFromInput(schemaPath, dsn string) (*model.Model, error) {
	var schema *db.Schema
	var err error

	switch {
	case schemaPath != "" && dsn != "":
		return nil, fmt.Errorf("--schema and --dsn are mutually exclusive")
	case schemaPath != "":
		schema, err = db.LoadSchema(schemaPath)
		if err != nil {
			return nil, err
		}
	case dsn != "":
		introspector := &db.PostgresIntrospector{}
		if err := introspector.ConnectWithDSN(dsn); err != nil {
			return nil, fmt.Errorf("connecting to database: %v", err)
		}
		defer introspector.Close()
		schema, err = introspector.ExtractSchema()
		if err != nil {
			return nil, fmt.Errorf("extracting schema: %v", err)
		}
	default:
		return nil, fmt.Errorf("either --schema or --dsn is required")
	}

	return model.BuildModel(schema, model.NewDefaultRegistry())
}

// emptyModel is the diff baseline for a first-time apply.
func emptyModel(databaseType string) *model.Model {
	return &model.Model{
		DatabaseType: databaseType,
		Tables:       make(map[string]model.Table),
	}
}

// resolveHash expands an abbreviated snapshot hash to the full hash,
// failing on ambiguity.
func resolveHash(s *store.Store, prefix string) (string, error) {
	hashes, err := s.ListSnapshots()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, hash := range hashes {
		if hash == prefix {
			return hash, nil
		}
		if len(prefix) >= 6 && len(prefix) < len(hash) && hash[:len(prefix)] == prefix {
			matches = append(matches, hash)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no snapshot matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d snapshots match)", prefix, len(matches))
	}
}
