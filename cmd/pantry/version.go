// Version command for the pantry CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/pkg/pantry"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pantry version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pantry", pantry.Version)
	},
}
