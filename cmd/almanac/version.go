// Version command for the almanac CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/almanac/pkg/almanac"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the almanac version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("almanac", almanac.Version)
	},
}
