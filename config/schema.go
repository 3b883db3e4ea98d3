package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-rowkit/database/types"
)

// LoadSchemaFile reads a static schema from a YAML file of the form
//
//	tables:
//	  - name: Users
//	    primaryKey: Id
//	    columns:
//	      - {name: Id, type: integer, autoIncrements: true}
//	      - {name: Email, type: string, maxLength: 255}
//
// Tables keep the order given in the file.
func LoadSchemaFile(path string) (types.Schema, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return types.Schema{}, fmt.Errorf("failed to load schema file %s: %w", path, err)
	}

	var schema types.Schema
	if err := k.Unmarshal("", &schema); err != nil {
		return types.Schema{}, fmt.Errorf("failed to decode schema file %s: %w", path, err)
	}

	if err := validateSchema(schema); err != nil {
		return types.Schema{}, fmt.Errorf("schema file %s: %w", path, err)
	}
	return schema, nil
}

func validateSchema(schema types.Schema) error {
	seen := make(map[string]struct{}, len(schema.Tables))
	for _, table := range schema.Tables {
		if table.Name == "" {
			return NewMissingFieldError("tables.name")
		}
		if _, dup := seen[table.Name]; dup {
			return NewInvalidFieldError("tables."+table.Name, "duplicate table", nil)
		}
		seen[table.Name] = struct{}{}

		if len(table.Columns) == 0 {
			return NewMissingFieldError("tables." + table.Name + ".columns")
		}
		for _, col := range table.Columns {
			if !isColumnType(col.Type) {
				return &types.UnknownColumnTypeError{Table: table.Name, Column: col.Name, PhysicalType: string(col.Type)}
			}
		}
		if table.HasPrimaryKey() {
			if _, ok := table.Column(table.PrimaryKey); !ok {
				return NewInvalidFieldError("tables."+table.Name+".primaryKey",
					fmt.Sprintf("column %q does not exist", table.PrimaryKey), nil)
			}
		}
	}
	return nil
}

func isColumnType(ct types.ColumnType) bool {
	for _, known := range types.AllColumnTypes {
		if ct == known {
			return true
		}
	}
	return false
}
