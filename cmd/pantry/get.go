// Get command retrieves an object by primary key.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

var getCmd = &cobra.Command{
	Use:   "get <type> <key>",
	Short: "Get an object by primary key",
	Long: `Get retrieves an object of the named type by its primary key and
prints it as JSON. Link properties render as the target row index, list
properties as an array of row indexes.

Example:
  pantry get Person ada`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	typeName := args[0]
	key := args[1]

	backend, schemas, _, err := attachBackend()
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(exitSysError)
	}
	defer backend.Detach()

	schema, err := schemas.SchemaFor(typeName)
	if err != nil {
		return err
	}
	pk := schema.PrimaryKeyProperty()
	if pk == nil {
		return fmt.Errorf("type %q has no primary key; objects cannot be fetched by key", typeName)
	}

	table, err := backend.TableFor(typeName)
	if err != nil {
		return err
	}

	var index types.RowIndex
	switch pk.Type {
	case types.TypeString:
		index, err = table.FindFirstString(pk.Column, key)
	case types.TypeInt:
		n, perr := strconv.ParseInt(key, 10, 64)
		if perr != nil {
			return fmt.Errorf("type %q has an int primary key; %q is not an integer", typeName, key)
		}
		index, err = table.FindFirstInt(pk.Column, n)
	default:
		return fmt.Errorf("%w: primary key type %s", types.ErrInvalidPrimaryKeyType, pk.Type)
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", typeName, err)
	}
	if index == types.RowNotFound {
		return fmt.Errorf("%s %q not found", typeName, key)
	}

	row, err := table.RowAt(index)
	if err != nil {
		return err
	}

	out, err := renderRow(schema, row)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal object: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

// renderRow reads every property of the row into a JSON-friendly map. Links
// render as target row indexes, lists as arrays of target row indexes.
func renderRow(schema *types.Schema, row types.Row) (map[string]any, error) {
	out := make(map[string]any, len(schema.Properties))
	for _, prop := range schema.Properties {
		switch prop.Type {
		case types.TypeObject:
			target, err := row.Link(prop.Column)
			if err != nil {
				return nil, fmt.Errorf("read %s.%s: %w", schema.Name, prop.Name, err)
			}
			if target == types.RowNotFound {
				out[prop.Name] = nil
			} else {
				out[prop.Name] = target
			}
		case types.TypeList:
			list, err := row.LinkList(prop.Column)
			if err != nil {
				return nil, fmt.Errorf("read %s.%s: %w", schema.Name, prop.Name, err)
			}
			targets, err := list.Targets()
			if err != nil {
				return nil, fmt.Errorf("read %s.%s: %w", schema.Name, prop.Name, err)
			}
			out[prop.Name] = targets
		default:
			value, err := row.Value(prop.Column)
			if err != nil {
				return nil, fmt.Errorf("read %s.%s: %w", schema.Name, prop.Name, err)
			}
			out[prop.Name] = value
		}
	}
	return out, nil
}
