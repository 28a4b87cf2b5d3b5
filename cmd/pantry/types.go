// Types command lists the declared object schemas.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List declared object types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "types:", err)
			os.Exit(exitSysError)
		}
		schemas, _, err := loadSchemas(configDir)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, schema := range schemas.Schemas() {
			fmt.Fprintf(w, "%s\n", schema.Name)
			for _, prop := range schema.Properties {
				marker := ""
				if prop.IsPrimary {
					marker = " (primary)"
				}
				target := ""
				if prop.ObjectType != "" {
					target = " -> " + prop.ObjectType
				}
				fmt.Fprintf(w, "  %s\t%s%s%s\n", prop.Name, prop.Type, target, marker)
			}
		}
		return w.Flush()
	},
}
