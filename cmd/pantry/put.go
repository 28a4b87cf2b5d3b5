// Put command materializes an object from JSON input.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/object"
)

var (
	flagPutData   string
	flagPutUpdate bool
	flagPutGenID  bool
)

var putCmd = &cobra.Command{
	Use:   "put <type>",
	Short: "Create or upsert an object from JSON",
	Long: `Put materializes an object of the named type from a JSON value.

Without --update, a value whose primary key already exists is rejected.
With --update, the existing object is edited in place.
With --gen-id, a missing string primary key is filled with a generated UUID.

Example:
  pantry put Person --data '{"name": "ada", "age": 36}'
  pantry put Person --data '{"name": "ada", "age": 37}' --update`,
	Args: cobra.ExactArgs(1),
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVar(&flagPutData, "data", "", "JSON object value (required)")
	putCmd.Flags().BoolVar(&flagPutUpdate, "update", false, "upsert when the primary key already exists")
	putCmd.Flags().BoolVar(&flagPutGenID, "gen-id", false, "generate a UUID for a missing string primary key")
	putCmd.MarkFlagRequired("data")
}

func runPut(cmd *cobra.Command, args []string) error {
	typeName := args[0]

	decoder := json.NewDecoder(strings.NewReader(flagPutData))
	decoder.UseNumber()
	var value map[string]any
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("parse --data: %w", err)
	}

	backend, schemas, acc, err := attachBackend()
	if err != nil {
		fmt.Fprintln(os.Stderr, "put:", err)
		os.Exit(exitSysError)
	}
	defer backend.Detach()

	schema, err := schemas.SchemaFor(typeName)
	if err != nil {
		return err
	}

	if flagPutGenID {
		if pk := schema.PrimaryKeyProperty(); pk != nil {
			if _, present := value[pk.Name]; !present {
				id, err := uuid.NewV7()
				if err != nil {
					return fmt.Errorf("generate id: %w", err)
				}
				value[pk.Name] = id.String()
			}
		}
	}

	if err := backend.Begin(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	obj, err := object.Create[any](acc, backend, schema, value, flagPutUpdate)
	if err != nil {
		backend.Rollback()
		return err
	}
	if err := backend.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	fmt.Printf("%s[%d]\n", typeName, obj.Row.Index())
	return nil
}
