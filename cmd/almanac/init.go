// Init command: create the database and apply the schema.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the store",
	Long: `Init creates the database and applies the schema. Running init on an
existing store is harmless.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		config, err := storeConfig()
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{"driver": config.Driver, "dsn": config.DSN})
		}
		fmt.Printf("Initialized %s store at %s\n", config.Driver, config.DSN)
		return nil
	},
}
