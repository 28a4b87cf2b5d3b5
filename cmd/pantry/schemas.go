// Schema declarations for the pantry CLI, loaded from schemas.yaml in the
// config directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

const schemasFileName = "schemas.yaml"

// defaultSchemasYAML is the starter schema set written on init.
const defaultSchemasYAML = `# Pantry object type declarations.
# Columns are assigned in declaration order. At most one property per type
# may be primary, and it must be of type string or int.
types:
  - name: Person
    properties:
      - name: name
        type: string
        primary: true
      - name: age
        type: int
        default: 0
      - name: bestFriend
        type: object
        object_type: Person
`

// propertySpec mirrors one property entry in schemas.yaml.
type propertySpec struct {
	Name       string `mapstructure:"name"`
	Type       string `mapstructure:"type"`
	ObjectType string `mapstructure:"object_type"`
	Primary    bool   `mapstructure:"primary"`
	Default    any    `mapstructure:"default"`
}

// typeSpec mirrors one object type entry in schemas.yaml.
type typeSpec struct {
	Name       string         `mapstructure:"name"`
	Properties []propertySpec `mapstructure:"properties"`
}

// loadSchemas reads schemas.yaml from the config directory and builds the
// schema set plus the per-type default values declared alongside properties.
func loadSchemas(configDir string) (*types.SchemaSet, map[string]map[string]any, error) {
	path := filepath.Join(configDir, schemasFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("no schemas declared; run 'pantry init' to create %s", path)
		}
		return nil, nil, fmt.Errorf("stat schemas file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configFileType)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read schemas: %w", err)
	}

	var specs []typeSpec
	if err := v.UnmarshalKey("types", &specs); err != nil {
		return nil, nil, fmt.Errorf("parse schemas: %w", err)
	}

	schemas := make([]types.Schema, 0, len(specs))
	defaults := make(map[string]map[string]any)
	for _, spec := range specs {
		schema := types.Schema{Name: spec.Name}
		for column, p := range spec.Properties {
			propType, err := types.ParsePropertyType(p.Type)
			if err != nil {
				return nil, nil, fmt.Errorf("type %s property %s: %w", spec.Name, p.Name, err)
			}
			schema.Properties = append(schema.Properties, types.Property{
				Name:       p.Name,
				Type:       propType,
				ObjectType: p.ObjectType,
				Column:     column,
				IsPrimary:  p.Primary,
			})
			if p.Default != nil {
				if defaults[spec.Name] == nil {
					defaults[spec.Name] = make(map[string]any)
				}
				defaults[spec.Name][p.Name] = p.Default
			}
		}
		schemas = append(schemas, schema)
	}

	set, err := types.NewSchemaSet(schemas...)
	if err != nil {
		return nil, nil, fmt.Errorf("validate schemas: %w", err)
	}
	return set, defaults, nil
}

// ensureDefaultSchemasFile creates a starter schemas.yaml if the file does
// not exist in the config directory.
func ensureDefaultSchemasFile(configDir string) error {
	path := filepath.Join(configDir, schemasFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat schemas file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultSchemasYAML), 0o644)
}
